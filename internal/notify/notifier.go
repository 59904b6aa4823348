// Package notify delivers episode alerts. Delivery is best effort:
// callers log failures and carry on.
package notify

import "errors"

// Notifier sends a titled alert
type Notifier interface {
	Notify(title, message string) error
}

// Func adapts a plain function to Notifier
type Func func(title, message string) error

// Notify calls f
func (f Func) Notify(title, message string) error {
	return f(title, message)
}

// Nop discards alerts
type Nop struct{}

// Notify does nothing
func (Nop) Notify(string, string) error { return nil }

// Multi fans an alert out to every notifier, even after one fails
type Multi []Notifier

// Notify delivers to all notifiers and joins their errors
func (m Multi) Notify(title, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
