package gateway

import (
	"errors"

	"github.com/harun/xlsession/pkg/session"
)

// errorCode maps store errors onto JSON-RPC codes. A failed recovery wraps
// both ErrNotFound and its cause, so file causes are checked first.
func errorCode(err error) int {
	switch {
	case errors.Is(err, session.ErrFileNotFound):
		return FileNotFound
	case errors.Is(err, session.ErrResourceLocked):
		return FileLocked
	case errors.Is(err, session.ErrNotFound):
		return SessionNotFound
	case errors.Is(err, session.ErrNotRecoverable):
		return SessionNotRecoverable
	case errors.Is(err, session.ErrCapacity):
		return CapacityExhausted
	case errors.Is(err, session.ErrClosed):
		return StoreClosed
	case errors.Is(err, session.ErrIO):
		return DocumentIOError
	default:
		return InternalError
	}
}
