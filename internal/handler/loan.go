package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/internal/auth"
	"github.com/segyhp/loan-engine/internal/domain"
	customError "github.com/segyhp/loan-engine/pkg/errors"
	"github.com/segyhp/loan-engine/pkg/response"
)

// LoanEngine is the lifecycle engine as seen by the HTTP layer.
type LoanEngine interface {
	CreateLoan(ctx context.Context, caller domain.Caller, amount decimal.Decimal, termWeeks int) (*domain.Loan, error)
	ApproveLoan(ctx context.Context, caller domain.Caller, loanID uuid.UUID, desiredState string) (*domain.Loan, error)
	RepayLoan(ctx context.Context, caller domain.Caller, loanID uuid.UUID, amount decimal.Decimal) (*domain.Loan, error)
	ListLoans(ctx context.Context, caller domain.Caller, includeAll bool) ([]*domain.Loan, error)
	GetLoan(ctx context.Context, caller domain.Caller, loanID uuid.UUID) (*domain.Loan, error)
}

type LoanHandler struct {
	engine    LoanEngine
	validator *validator.Validate
}

func NewLoanHandler(engine LoanEngine) *LoanHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &LoanHandler{
		engine:    engine,
		validator: v,
	}
}

// CreateLoan handles POST /loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req domain.CreateLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.engine.CreateLoan(r.Context(), caller, req.Amount, req.TermWeeks)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, loan)
}

// ListLoans handles GET /loans?all=true
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	includeAll := false
	if raw := r.URL.Query().Get("all"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.FromError(w, customError.NewValidationError([]customError.FieldViolation{{
				Field:   "all",
				Message: "all should be a boolean",
			}}))
			return
		}
		includeAll = parsed
	}

	loans, err := h.engine.ListLoans(r.Context(), caller, includeAll)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, domain.LoanListResponse{
		Count:   len(loans),
		Results: loans,
	})
}

// GetLoan handles GET /loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}

	loan, err := h.engine.GetLoan(r.Context(), caller, loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

// ApproveLoan handles PATCH /loans/{loanId}/approve
func (h *LoanHandler) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if !caller.IsAdmin {
		response.FromError(w, customError.WrapPermissionDenied("only admins can approve loans"))
		return
	}

	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}

	var req domain.ApproveLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.FromError(w, validationError(err))
		return
	}

	loan, err := h.engine.ApproveLoan(r.Context(), caller, loanID, req.State)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

// RepayLoan handles POST /loans/{loanId}/repayments
func (h *LoanHandler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}

	var req domain.RepayLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.engine.RepayLoan(r.Context(), caller, loanID, req.Amount)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

func (h *LoanHandler) caller(w http.ResponseWriter, r *http.Request) (domain.Caller, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
	}
	return caller, ok
}

func (h *LoanHandler) loanID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["loanId"]
	loanID, err := uuid.Parse(raw)
	if err != nil {
		response.FromError(w, customError.WrapLoanNotFound(raw))
		return uuid.Nil, false
	}
	return loanID, true
}

func (h *LoanHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return false
	}
	return true
}

func validationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return customError.NewValidationError([]customError.FieldViolation{{Message: err.Error()}})
	}

	violations := make([]customError.FieldViolation, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		violations = append(violations, customError.FieldViolation{
			Field:   fieldErr.Field(),
			Message: fmt.Sprintf("%s is %s", fieldErr.Field(), fieldErr.Tag()),
		})
	}
	return customError.NewValidationError(violations)
}
