package progression

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateCompletion means the user already has an entry for that calendar day.
	ErrDuplicateCompletion = errors.New("task already completed today")
	// ErrUnknownUser is returned by stores when the progression row does not exist.
	ErrUnknownUser = errors.New("user not found")
)

// ValidationError rejects a submission before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StorageError wraps a failed read or write against the store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("progression: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// storageErr wraps err unless it already carries a category the caller can match on.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	var ve *ValidationError
	if errors.Is(err, ErrDuplicateCompletion) || errors.As(err, &se) || errors.As(err, &ve) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
