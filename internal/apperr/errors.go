// Package apperr defines the error taxonomy shared by the store,
// repository, and sync layers.
//
// Errors carry a short user-facing message and a detailed developer
// message. Callers classify with errors.As or the Is* helpers and decide
// what to surface: validation and auth failures are actionable by the
// user, database and sync failures map to a generic "try again" message
// while the wrapped cause goes to the log.
package apperr

import (
	"database/sql"
	"errors"
	"fmt"
)

// ValidationError reports bad user input. Recoverable; Message is safe to
// show to the user, Detail identifies the offending record for logs.
type ValidationError struct {
	Message string // user-facing
	Detail  string // developer-facing, includes the record context
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("validation: %s (%s)", e.Message, e.Detail)
	}
	return fmt.Sprintf("validation: %s", e.Message)
}

// Validation builds a ValidationError with a formatted developer detail.
func Validation(message, detailFormat string, args ...any) *ValidationError {
	return &ValidationError{
		Message: message,
		Detail:  fmt.Sprintf(detailFormat, args...),
	}
}

// LimitError is a ValidationError variant for capacity violations in
// batch operations. It names the violated limit and how many more rows
// could still be added.
type LimitError struct {
	Message   string // user-facing
	Limit     int    // the configured maximum
	Requested int    // how many rows the caller asked for
	Remaining int    // how many could still be added
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit exceeded: %s (limit=%d requested=%d remaining=%d)",
		e.Message, e.Limit, e.Requested, e.Remaining)
}

// AuthError reports a missing or mismatched principal. Recoverable;
// prompts re-authentication.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s", e.Message)
}

// DatabaseError wraps an unexpected storage failure. The user sees a
// generic message; Cause carries the full detail for logging.
type DatabaseError struct {
	Op    string // the operation that failed, e.g. "create plan"
	Cause error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database: %s: %v", e.Op, e.Cause)
}

func (e *DatabaseError) Unwrap() error { return e.Cause }

// Database wraps err into a DatabaseError unless it already is one of
// the pass-through kinds (ValidationError, AuthError, LimitError,
// TransactionError or an existing DatabaseError).
func Database(op string, err error) error {
	if err == nil {
		return nil
	}
	// Not-found is a result, not a storage failure.
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	var (
		ve *ValidationError
		le *LimitError
		ae *AuthError
		de *DatabaseError
		te *TransactionError
	)
	if errors.As(err, &ve) || errors.As(err, &le) || errors.As(err, &ae) ||
		errors.As(err, &de) || errors.As(err, &te) {
		return err
	}
	return &DatabaseError{Op: op, Cause: err}
}

// SyncError reports a network or remote failure during a sync cycle.
// Retryable distinguishes transient conditions (timeouts, 5xx, network
// errors) from permanent ones (remote auth rejection).
type SyncError struct {
	Op        string
	Retryable bool
	Cause     error
}

func (e *SyncError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("sync: %s (%s): %v", e.Op, kind, e.Cause)
}

func (e *SyncError) Unwrap() error { return e.Cause }

// SchemaError reports a migration or table-definition defect. Fatal at
// registry-load time; not user-recoverable.
type SchemaError struct {
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s", e.Detail)
}

// Schema builds a SchemaError with a formatted detail.
func Schema(format string, args ...any) *SchemaError {
	return &SchemaError{Detail: fmt.Sprintf(format, args...)}
}

// TransactionError reports a misuse of the store's write primitive,
// such as opening a write while one is already in progress on the same
// logical connection.
type TransactionError struct {
	Detail string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction: %s", e.Detail)
}

// IsValidation reports whether err is a ValidationError or LimitError.
func IsValidation(err error) bool {
	var ve *ValidationError
	var le *LimitError
	return errors.As(err, &ve) || errors.As(err, &le)
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRetryable reports whether err is a SyncError marked retryable.
func IsRetryable(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Retryable
}
