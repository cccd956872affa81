package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id is neither live nor recoverable
	ErrNotFound = errors.New("session not found")
	// ErrNotRecoverable is returned when no expired history entry exists for an id
	ErrNotRecoverable = errors.New("session not recoverable")
	// ErrResourceLocked is returned when another process holds the document
	ErrResourceLocked = errors.New("file is locked by another process")
	// ErrFileNotFound is returned when a recovered session's file has disappeared
	ErrFileNotFound = errors.New("file not found")
	// ErrIO wraps failures of the underlying application or filesystem
	ErrIO = errors.New("document I/O failure")
	// ErrCapacity is returned when every live slot is reserved by an in-flight open
	ErrCapacity = errors.New("session capacity exhausted")
	// ErrClosed is returned once the store has been shut down
	ErrClosed = errors.New("session store closed")
)

// Error describes a failed store operation
type Error struct {
	Op   string
	ID   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := "session " + e.Op
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op, id, path string, err error) error {
	return &Error{Op: op, ID: id, Path: path, Err: err}
}

// ioError marks err as an ErrIO failure while keeping it in the chain
func ioError(err error) error {
	if err == nil || errors.Is(err, ErrIO) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}

// notFound marks reason as an ErrNotFound failure while keeping it in the chain
func notFound(reason error) error {
	if reason == nil {
		return ErrNotFound
	}
	if errors.Is(reason, ErrNotFound) {
		return reason
	}
	return fmt.Errorf("%w: %w", ErrNotFound, reason)
}
