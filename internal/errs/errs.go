// Package errs defines the closed error taxonomy of the ledger core.
//
// Every error produced by the engine falls into one of three classes:
//
//   - Validation: malformed input or a pre-apply business-rule violation.
//     The transaction is rejected before anything durable changes.
//   - BusinessRule: an apply-time business failure (underfunded, limits
//     exceeded, statistics overflow). The transaction-scoped delta is
//     discarded; only the already-charged fee survives.
//   - StorageInconsistency: a defect (affected rows != 1, a required record
//     missing, use of a finalized delta). The enclosing store transaction
//     must be rolled back; no recovery is attempted.
//
// Callers pattern-match on the class to choose between reject, discard,
// and abort behavior.
package errs

import (
	"errors"
	"fmt"
)

// Class categorizes an engine error for recovery decisions.
type Class string

const (
	// ClassValidation marks malformed input or pre-apply rule violations.
	ClassValidation Class = "VALIDATION"

	// ClassBusinessRule marks apply-time business failures.
	ClassBusinessRule Class = "BUSINESS_RULE"

	// ClassStorageInconsistency marks unrecoverable defects in durable state.
	ClassStorageInconsistency Class = "STORAGE_INCONSISTENCY"
)

// Code identifies the specific failure within a class.
type Code string

const (
	CodeUnsupportedRecordKind Code = "UNSUPPORTED_RECORD_KIND"
	CodeAffectedRows          Code = "AFFECTED_ROWS"
	CodeMissingRecord         Code = "MISSING_RECORD"
	CodeUseAfterFinalize      Code = "USE_AFTER_FINALIZE"
	CodeInvalidRecord         Code = "INVALID_RECORD"
	CodeOverflow              Code = "OVERFLOW"
	CodeBadConfig             Code = "BAD_CONFIG"
)

// Error is a classified engine error with structured context.
type Error struct {
	// Class identifies the recovery behavior the caller must take.
	Class Class

	// Code identifies the failure category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Kind names the record kind involved, when applicable.
	Kind string

	// Key is the cache-key form of the record key involved, when applicable.
	Key string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Kind != "" && e.Key != "":
		return fmt.Sprintf("%s/%s: %s (kind=%s, key=%s)", e.Class, e.Code, e.Message, e.Kind, e.Key)
	case e.Kind != "":
		return fmt.Sprintf("%s/%s: %s (kind=%s)", e.Class, e.Code, e.Message, e.Kind)
	default:
		return fmt.Sprintf("%s/%s: %s", e.Class, e.Code, e.Message)
	}
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a validation-class error.
func Validation(code Code, format string, args ...any) *Error {
	return &Error{Class: ClassValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// BusinessRule builds a business-rule-class error.
func BusinessRule(code Code, format string, args ...any) *Error {
	return &Error{Class: ClassBusinessRule, Code: code, Message: fmt.Sprintf(format, args...)}
}

// StorageInconsistency builds a storage-inconsistency-class error.
// Errors of this class abort the enclosing apply and roll back its
// store transaction.
func StorageInconsistency(code Code, format string, args ...any) *Error {
	return &Error{Class: ClassStorageInconsistency, Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsStorageInconsistency reports whether err (or any wrapped cause) is a
// storage-inconsistency error. Uses errors.As to handle wrapped errors.
func IsStorageInconsistency(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassStorageInconsistency
	}
	return false
}

// IsValidation reports whether err is a validation-class error.
func IsValidation(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassValidation
	}
	return false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
