package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can decide on escalation
// without matching message text.
type ErrorKind string

const (
	// KindPrecondition means a required file or tool is missing; the
	// process aborts before any mutation
	KindPrecondition ErrorKind = "precondition"

	// KindExternalCommand means a sub-invocation (migration, probe,
	// compose call) reported failure
	KindExternalCommand ErrorKind = "external-command"

	// KindTimeout means a bounded health wait elapsed; escalates like an
	// external-command failure but is reported distinctly
	KindTimeout ErrorKind = "timeout"

	// KindIntegrity means a backup archive failed verification and must
	// never be offered as a rollback target
	KindIntegrity ErrorKind = "integrity"

	// KindConfirmationDeclined is not a real failure: the operator
	// declined a gate and nothing was mutated
	KindConfirmationDeclined ErrorKind = "confirmation-declined"
)

// Error is the typed error carried across phase boundaries
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, unwrapping as needed.
// Errors without a kind classify as external-command failures.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindExternalCommand
}

// NewPreconditionError reports a missing prerequisite for op
func NewPreconditionError(op string, err error) *Error {
	return &Error{Kind: KindPrecondition, Op: op, Err: err}
}

// NewExternalCommandError reports a failed sub-invocation for op
func NewExternalCommandError(op string, err error) *Error {
	return &Error{Kind: KindExternalCommand, Op: op, Err: err}
}

// NewTimeoutError reports an elapsed bounded wait for op
func NewTimeoutError(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Err: err}
}

// NewIntegrityError reports a backup verification failure for op
func NewIntegrityError(op string, err error) *Error {
	return &Error{Kind: KindIntegrity, Op: op, Err: err}
}

// NewConfirmationDeclined reports a clean operator abort at op
func NewConfirmationDeclined(op string) *Error {
	return &Error{Kind: KindConfirmationDeclined, Op: op}
}

// IsDeclined reports whether err is an operator-declined confirmation
func IsDeclined(err error) bool {
	return err != nil && KindOf(err) == KindConfirmationDeclined
}
