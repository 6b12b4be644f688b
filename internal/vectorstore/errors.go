package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind is the normalized classification of a store error.
// The gateway maps provider-specific failures into this closed set so
// callers never pattern-match on error strings.
type Kind int

const (
	// KindOther is any failure that is neither a missing collection
	// nor a connectivity problem.
	KindOther Kind = iota

	// KindNotFound means the requested collection does not exist.
	KindNotFound

	// KindUnavailable means the store could not be reached or the
	// operation timed out.
	KindUnavailable
)

// String returns a human-readable kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "other"
	}
}

// Error wraps a store failure with its normalized Kind.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "search", "create collection"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("vectorstore: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err classifies as a missing collection.
func IsNotFound(err error) bool { return classify(err) == KindNotFound }

// IsUnavailable reports whether err classifies as a connectivity failure.
func IsUnavailable(err error) bool { return classify(err) == KindUnavailable }

// classify normalizes a raw store error into a Kind.
//
// Typed checks come first: PostgreSQL error codes identify a missing
// relation (undefined_table) and connection-class failures precisely.
// The case-insensitive message fallback guards against drivers that
// surface untyped errors for the same conditions.
func classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UndefinedTable:
			return KindNotFound
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgErr.Code == pgerrcode.CannotConnectNow,
			pgErr.Code == pgerrcode.TooManyConnections:
			return KindUnavailable
		default:
			return KindOther
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return KindUnavailable
	}

	// Fallback for untyped driver errors.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "does not exist"):
		return KindNotFound
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "timeout"):
		return KindUnavailable
	default:
		return KindOther
	}
}

// wrap builds a classified *Error for the given operation.
func wrap(op string, err error) *Error {
	return &Error{Kind: classify(err), Op: op, Err: err}
}
