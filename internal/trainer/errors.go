package trainer

import "fmt"

// DataLoadError reports a dataset that is missing, unreadable, lacks a
// required column or holds a malformed cell. Training does not proceed.
type DataLoadError struct {
	Path string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load dataset %s: %v", e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// PersistenceError reports artifacts that could not be written. No
// artifact is left half-written when it is returned.
type PersistenceError struct {
	Dir string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist artifacts to %s: %v", e.Dir, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
