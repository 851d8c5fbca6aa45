package tasks

import (
	"errors"
	"fmt"
)

var ErrImportInProgress = errors.New("import already in progress")

// PersistenceError wraps a failed write to the content store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
