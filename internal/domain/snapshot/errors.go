package snapshot

import (
	"errors"
	"fmt"
)

// NotFoundError reports a snapshot, group or node address that does not resolve.
type NotFoundError struct {
	Kind string // "snapshot", "group" or "node"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// MalformedInputError reports an upload that is not a usable snapshot document.
// The read path never returns it; unreadable stored documents degrade to an
// empty view instead.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed snapshot: %s: %v", e.Reason, e.Err)
	}
	return "malformed snapshot: " + e.Reason
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// StorageError wraps a persistence failure. The service returns it unchanged.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsMalformed reports whether err is or wraps a MalformedInputError.
func IsMalformed(err error) bool {
	var me *MalformedInputError
	return errors.As(err, &me)
}

// IsStorage reports whether err is or wraps a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
