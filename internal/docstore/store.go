// Package docstore persists whole JSON documents under string keys. Callers
// own the document shape and do read-modify-write; backends only move bytes.
package docstore

import (
	"context"
	"errors"
	"fmt"
)

// Operation names carried by Error.
const (
	OpRead  = "read"
	OpWrite = "write"
)

// ErrNotFound is returned by Read when the key has never been written.
var ErrNotFound = errors.New("docstore: document not found")

// Store reads and writes raw document bodies.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

// Error reports a failed backend call. Op is OpRead or OpWrite.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("docstore: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsReadError reports whether err is a failed read.
func IsReadError(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Op == OpRead
}

// IsWriteError reports whether err is a failed write.
func IsWriteError(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Op == OpWrite
}

func readErr(key string, err error) error {
	return &Error{Op: OpRead, Key: key, Err: err}
}

func writeErr(key string, err error) error {
	return &Error{Op: OpWrite, Key: key, Err: err}
}
