package load

import "fmt"

// ValidationError indicates a malformed or incomplete batch, detected before
// any write. Nothing is persisted when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid batch: " + e.Reason }

// StorageError indicates a connection, transaction, or query failure at the
// store. Data-affecting storage failures are fatal and abort the run; index
// maintenance failures are downgraded to warnings and never surface as one.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }
