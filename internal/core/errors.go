package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies a store failure so callers can branch on it instead of on
// driver error types.
type Kind int

const (
	// KindFatal is any failure that neither retrying nor the caller can fix.
	KindFatal Kind = iota
	// KindTransient is an infrastructure failure worth retrying (connection
	// loss, serialization failure, server shutting down).
	KindTransient
	// KindConstraint is an integrity violation (unique, foreign key, check).
	KindConstraint
	// KindNotFound means the addressed row does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConstraint:
		return "constraint"
	case KindNotFound:
		return "not_found"
	default:
		return "fatal"
	}
}

// Sentinels matched with errors.Is against classified errors.
var (
	ErrTransient  = errors.New("transient store error")
	ErrConstraint = errors.New("constraint violation")
	ErrNotFound   = errors.New("not found")
	ErrFatal      = errors.New("store error")

	// ErrOperationFailed is returned by the Runner once every attempt failed
	// transiently.
	ErrOperationFailed = errors.New("operation failed")
)

// StoreError is a store failure tagged with its Kind.
type StoreError struct {
	Kind Kind
	// Constraint names the violated constraint, when known.
	Constraint string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel of the error's Kind.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == KindTransient
	case ErrConstraint:
		return e.Kind == KindConstraint
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrFatal:
		return e.Kind == KindFatal
	}
	return false
}

// KindOf reports the Kind of err without wrapping it.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConstraint):
		return KindConstraint
	case errors.Is(err, ErrTransient):
		return KindTransient
	}
	return classifyKind(err)
}

// Classify tags err with its Kind. Nil stays nil; already classified errors
// and the package sentinels are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConstraint) ||
		errors.Is(err, ErrTransient) || errors.Is(err, ErrOperationFailed) {
		return err
	}

	out := &StoreError{Kind: classifyKind(err), Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		out.Constraint = pgErr.ConstraintName
	}
	return out
}

func classifyKind(err error) Kind {
	// Cancellation belongs to the caller; retrying would ignore it.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindFatal
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return KindNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return kindFromSQLState(pgErr.Code)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return KindTransient
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindTransient
	}
	return KindFatal
}

// kindFromSQLState maps a PostgreSQL SQLSTATE to a Kind.
func kindFromSQLState(code string) Kind {
	switch {
	case strings.HasPrefix(code, "23"): // integrity_constraint_violation
		return KindConstraint
	case strings.HasPrefix(code, "08"): // connection_exception
		return KindTransient
	}
	switch code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"53300", // too_many_connections
		"57P01", // admin_shutdown
		"57P02", // crash_shutdown
		"57P03": // cannot_connect_now
		return KindTransient
	}
	return KindFatal
}

// notFound wraps a not-found condition for the named entity.
func notFound(format string, args ...any) error {
	return &StoreError{Kind: KindNotFound, Err: fmt.Errorf(format, args...)}
}
