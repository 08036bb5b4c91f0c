package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrLoanNotFound     = errors.New("loan not found")
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidState     = errors.New("invalid loan state")
	ErrPersistence      = errors.New("persistence failure")
	ErrRepaymentAmount  = errors.New("repayment amount mismatch")
	ErrLockUnavailable  = errors.New("loan is locked by another operation")
)

// Kind classifies a BusinessError for callers and transports.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindPermissionDenied Kind = "permission_denied"
	KindInvalidState     Kind = "invalid_state"
	KindNotFound         Kind = "not_found"
	KindPersistence      Kind = "persistence"
)

// FieldViolation names one offending input field and the rule it broke.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BusinessError represents a business logic error
type BusinessError struct {
	Kind       Kind
	Code       string
	Message    string
	Violations []FieldViolation
	Err        error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the whole operation may be attempted again.
func (e *BusinessError) Retryable() bool {
	return e.Kind == KindPersistence
}

// NewBusinessError creates a new business error
func NewBusinessError(kind Kind, code, message string, err error) *BusinessError {
	return &BusinessError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodePermissionDenied    = "PERMISSION_DENIED"
	ErrCodeLoanNotFound        = "LOAN_NOT_FOUND"
	ErrCodeLoanAlreadyApproved = "LOAN_ALREADY_APPROVED"
	ErrCodeLoanAlreadyPaid     = "LOAN_ALREADY_PAID"
	ErrCodeLoanNotApproved     = "LOAN_NOT_APPROVED"
	ErrCodeRepaymentMismatch   = "REPAYMENT_AMOUNT_MISMATCH"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeLockUnavailable     = "LOCK_UNAVAILABLE"
)

// As extracts a BusinessError from an error chain.
func As(err error) (*BusinessError, bool) {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		return businessErr, true
	}
	return nil, false
}

// IsKind reports whether err carries a BusinessError of the given kind.
func IsKind(err error, kind Kind) bool {
	businessErr, ok := As(err)
	return ok && businessErr.Kind == kind
}

// NewValidationError builds a validation error from field violations.
func NewValidationError(violations []FieldViolation) *BusinessError {
	messages := make([]string, 0, len(violations))
	for _, v := range violations {
		messages = append(messages, v.Field+": "+v.Message)
	}

	return &BusinessError{
		Kind:       KindValidation,
		Code:       ErrCodeValidation,
		Message:    strings.Join(messages, "; "),
		Violations: violations,
		Err:        ErrValidation,
	}
}

// Wrap common errors with business context
func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		KindNotFound,
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapPermissionDenied(message string) *BusinessError {
	return NewBusinessError(KindPermissionDenied, ErrCodePermissionDenied, message, ErrPermissionDenied)
}

func WrapLoanAlreadyApproved() *BusinessError {
	return NewBusinessError(KindInvalidState, ErrCodeLoanAlreadyApproved, "loan already approved", ErrInvalidState)
}

func WrapLoanAlreadyPaidOnApprove() *BusinessError {
	return NewBusinessError(KindInvalidState, ErrCodeLoanAlreadyPaid, "loan already paid, no action possible", ErrInvalidState)
}

func WrapLoanFullyPaid() *BusinessError {
	return NewBusinessError(KindInvalidState, ErrCodeLoanAlreadyPaid, "loan already fully paid", ErrInvalidState)
}

func WrapLoanNotApproved() *BusinessError {
	return NewBusinessError(KindInvalidState, ErrCodeLoanNotApproved, "loan not approved or has no installments", ErrInvalidState)
}

func WrapRepaymentAmountMismatch(expected string) *BusinessError {
	err := NewBusinessError(
		KindValidation,
		ErrCodeRepaymentMismatch,
		fmt.Sprintf("repayment amount must equal %s", expected),
		ErrRepaymentAmount,
	)
	err.Violations = []FieldViolation{{Field: "amount", Message: err.Message}}
	return err
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		KindPersistence,
		ErrCodeDatabaseError,
		"database operation failed",
		fmt.Errorf("%w: %w", ErrPersistence, err),
	)
}

func WrapLockUnavailable(loanID string, err error) *BusinessError {
	return NewBusinessError(
		KindPersistence,
		ErrCodeLockUnavailable,
		fmt.Sprintf("Loan with ID %s is busy, retry later", loanID),
		fmt.Errorf("%w: %w", ErrLockUnavailable, err),
	)
}
