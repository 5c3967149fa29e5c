package shared

import "fmt"

// ErrorKind classifies a domain error so callers can react to a family of
// failures (e.g. retry with a smaller quantity on InsufficientAvailability)
// without matching on individual codes.
type ErrorKind string

const (
	KindInvalidArgument          ErrorKind = "INVALID_ARGUMENT"
	KindInvalidTransition        ErrorKind = "INVALID_TRANSITION"
	KindInsufficientAvailability ErrorKind = "INSUFFICIENT_AVAILABILITY"
	KindLineageMismatch          ErrorKind = "LINEAGE_MISMATCH"
	KindAlreadyInState           ErrorKind = "ALREADY_IN_STATE"
	KindImmutableFieldWrite      ErrorKind = "IMMUTABLE_FIELD_WRITE"
	KindNotFound                 ErrorKind = "NOT_FOUND"
	KindConcurrencyConflict      ErrorKind = "CONCURRENCY_CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target matches this error.
// A kind sentinel (Code equal to its Kind) matches every error of that kind,
// any other DomainError matches on Code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code == string(t.Kind) {
		return t.Kind == e.Kind
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error of the given kind
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewInvalidArgument creates an InvalidArgument error
func NewInvalidArgument(format string, args ...any) *DomainError {
	return kindError(KindInvalidArgument, format, args...)
}

// NewInvalidTransition creates an InvalidTransition error
func NewInvalidTransition(format string, args ...any) *DomainError {
	return kindError(KindInvalidTransition, format, args...)
}

// NewInsufficientAvailability creates an InsufficientAvailability error
func NewInsufficientAvailability(format string, args ...any) *DomainError {
	return kindError(KindInsufficientAvailability, format, args...)
}

// NewAlreadyInState creates an AlreadyInState error
func NewAlreadyInState(format string, args ...any) *DomainError {
	return kindError(KindAlreadyInState, format, args...)
}

func kindError(kind ErrorKind, format string, args ...any) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    string(kind),
		Message: fmt.Sprintf(format, args...),
	}
}

// Kind sentinels, usable with errors.Is
var (
	ErrInvalidArgument          = NewDomainError(KindInvalidArgument, string(KindInvalidArgument), "Invalid argument")
	ErrInvalidTransition        = NewDomainError(KindInvalidTransition, string(KindInvalidTransition), "Transition not allowed from current state")
	ErrInsufficientAvailability = NewDomainError(KindInsufficientAvailability, string(KindInsufficientAvailability), "Insufficient availability")
	ErrLineageMismatch          = NewDomainError(KindLineageMismatch, string(KindLineageMismatch), "Fulfillment pool does not match voucher lineage")
	ErrAlreadyInState           = NewDomainError(KindAlreadyInState, string(KindAlreadyInState), "Already in requested state")
	ErrImmutableFieldWrite      = NewDomainError(KindImmutableFieldWrite, string(KindImmutableFieldWrite), "Attempt to modify an immutable field")
	ErrNotFound                 = NewDomainError(KindNotFound, string(KindNotFound), "Resource not found")
	ErrConcurrencyConflict      = NewDomainError(KindConcurrencyConflict, string(KindConcurrencyConflict), "Resource was modified by another process")
)
