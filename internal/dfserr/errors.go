// Package dfserr defines the error kinds shared by every dfs service
// (extent server/client, lock server/client, paxos, filesystem layer).
//
// Import graph: dfserr is a leaf package with no internal dependencies,
// imported by every other package so error codes can cross RPC
// boundaries without reflecting concrete Go error values.
package dfserr

import "fmt"

// Code is the category of a dfs error, carried over RPC as a plain int
// so clients on either side of an RPC boundary agree on its meaning.
type Code int

const (
	// OK indicates success. Never wrapped in an Error.
	OK Code = iota
	// RPCERR indicates a transport-level failure.
	RPCERR
	// NOENT indicates the object is absent, or the lock is not held,
	// or a release's (client_id, xid) names the wrong holder.
	NOENT
	// IOERR indicates a persistence failure, an invalid offset, or an
	// operation attempted on an inappropriate object (e.g. remove
	// of a directory).
	IOERR
	// FBIG indicates a write would exceed the maximum extent size.
	FBIG
	// EXIST indicates a create/mkdir target name already exists.
	EXIST
	// RETRY indicates lock contention; the caller must wait for a
	// retry notification and resend its acquire.
	RETRY
)

// String names the code.
func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case RPCERR:
		return "RPCERR"
	case NOENT:
		return "NOENT"
	case IOERR:
		return "IOERR"
	case FBIG:
		return "FBIG"
	case EXIST:
		return "EXIST"
	case RETRY:
		return "RETRY"
	default:
		return "UNKNOWN"
	}
}

// Error wraps a Code with context, implementing the error interface.
// RPC replies carry a Code directly; Error is used internally by
// non-RPC callers (e.g. the filesystem semantics layer) that want a
// normal Go error value.
type Error struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code.String()
}

// New constructs an *Error from a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the Code from err, defaulting to IOERR for any error
// that did not originate in this package (e.g. a raw network error).
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return IOERR
}
