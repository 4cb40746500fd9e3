package errs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Kind buckets every error the system can surface. The retry executor and the
// transaction layer dispatch on Kind, never on concrete error types.
type Kind int

const (
	// KindUnknown is the default bucket for unclassified errors.
	KindUnknown Kind = iota
	// KindValidation marks bad input rejected locally; never sent remotely.
	KindValidation
	// KindConflict marks an optimistic-concurrency precondition failure.
	KindConflict
	// KindTransient marks a temporary infrastructure failure worth retrying.
	KindTransient
	// KindPermanent marks permission/not-found failures; never retried.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Sentinel errors shared across packages.
var (
	ErrNotFound        = &Error{Kind: KindPermanent, Message: "document not found"}
	ErrVersionConflict = &Error{Kind: KindConflict, Message: "document version conflict"}
	ErrNoActor         = &Error{Kind: KindPermanent, Message: "no actor signed in"}
)

// Error carries a kind alongside a message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation builds a validation error.
func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// pgTransientClasses lists SQLSTATE prefixes treated as transient: connection
// exceptions (08), insufficient resources (53), operator intervention (57).
var pgTransientClasses = []string{"08", "53", "57"}

// pgPermanentCodes lists SQLSTATEs that must never be retried.
var pgPermanentCodes = map[string]bool{
	"42501": true, // insufficient_privilege
	"28000": true, // invalid_authorization_specification
	"28P01": true, // invalid_password
	"3D000": true, // invalid_catalog_name
	"42P01": true, // undefined_table
}

// transientPatterns matches network-ish failures that arrive as plain
// strings from drivers and the AMQP client.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no such host",
	"unexpected EOF",
	"channel/connection is not open",
}

// Classify maps any error to a Kind. Classification is data-driven: SQLSTATE
// class tables and message patterns above, extended in one place rather than
// per call site.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}
	if errors.Is(err, amqp.ErrClosed) {
		return KindTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgPermanentCodes[pgErr.Code] {
			return KindPermanent
		}
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			// serialization_failure / deadlock_detected
			return KindConflict
		}
		for _, class := range pgTransientClasses {
			if strings.HasPrefix(pgErr.Code, class) {
				return KindTransient
			}
		}
		return KindUnknown
	}

	msg := err.Error()
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return KindTransient
		}
	}

	return KindUnknown
}

// IsRetryable reports whether the retry executor may attempt the operation
// again. Conflicts are retryable at the transaction layer, which re-reads
// remote state before the next attempt.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case KindTransient, KindConflict:
		return true
	default:
		return false
	}
}
