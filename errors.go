package txctx

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is returned when a session is required and none is current.
	ErrNoSession = errors.New("txctx: no active session")
	// ErrSessionAlreadyActive is returned by Session when a session is current
	// and reuse was not requested.
	ErrSessionAlreadyActive = errors.New("txctx: session already active")
	// ErrTransactionAlreadyActive is returned by Transaction when nesting is
	// disallowed and the current session is inside a transaction.
	ErrTransactionAlreadyActive = errors.New("txctx: transaction already active")
	// ErrSessionClosed is returned by sessions used after Close.
	ErrSessionClosed = errors.New("txctx: session closed")
	// ErrNilQuery is returned by Execute when called without a query.
	ErrNilQuery = errors.New("txctx: nil query")
)

// Scope operations reported by ScopeError.
const (
	OpAcquire = "acquire"
	OpBegin   = "begin"
	OpCommit  = "commit"
	OpClose   = "close"
)

// ScopeError reports a failure of the scope machinery itself, as opposed to
// an error returned by the scope body, which is passed through unchanged.
type ScopeError struct {
	Op  string
	Err error
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("txctx: %s: %v", e.Op, e.Err)
}

func (e *ScopeError) Unwrap() error { return e.Err }

// ErrorKind classifies errors surfaced by this package.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNoSession
	KindSessionAlreadyActive
	KindTransactionAlreadyActive
	KindSessionClosed
	KindEngine
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNoSession:
		return "no_session"
	case KindSessionAlreadyActive:
		return "session_already_active"
	case KindTransactionAlreadyActive:
		return "transaction_already_active"
	case KindSessionClosed:
		return "session_closed"
	default:
		return "engine"
	}
}

// Classify maps err onto the error taxonomy. Anything that is not a stack
// discipline violation is an engine error.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNoSession):
		return KindNoSession
	case errors.Is(err, ErrSessionAlreadyActive):
		return KindSessionAlreadyActive
	case errors.Is(err, ErrTransactionAlreadyActive):
		return KindTransactionAlreadyActive
	case errors.Is(err, ErrSessionClosed):
		return KindSessionClosed
	default:
		return KindEngine
	}
}

// IsProgrammingError reports whether err is a misuse of the scope API.
// Such errors are never worth retrying.
func IsProgrammingError(err error) bool {
	switch Classify(err) {
	case KindNoSession, KindSessionAlreadyActive, KindTransactionAlreadyActive, KindSessionClosed:
		return true
	}
	return false
}
