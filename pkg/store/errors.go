package store

import "fmt"

// StoreError wraps a failed bucket store operation with the operation name.
// Store operations stay fallible all the way up: only the hot-path caller
// (the instrumentation hook) and the query boundary downgrade these errors
// to "log and carry on".
type StoreError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("bucket store %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr wraps err as a *StoreError for operation op.
func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
