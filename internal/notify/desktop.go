package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// Desktop raises a platform notification (libnotify, toast, osascript)
type Desktop struct {
	AppIcon string
	send    func(title, message, appIcon string) error
}

// NewDesktop returns a notifier backed by the native notification center
func NewDesktop(appIcon string) *Desktop {
	return &Desktop{AppIcon: appIcon, send: beeep.Notify}
}

// Notify shows the alert on the desktop
func (d *Desktop) Notify(title, message string) error {
	if err := d.send(title, message, d.AppIcon); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}
