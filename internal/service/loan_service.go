package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/internal/config"
	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/repository"
	customError "github.com/segyhp/loan-engine/pkg/errors"
	"github.com/segyhp/loan-engine/pkg/logger"
	"github.com/segyhp/loan-engine/pkg/utils"
)

// LoanService is the loan lifecycle engine. Approve and repay run in a unit of
// work holding the loan lock, so they are atomic and serialized per loan.
type LoanService struct {
	uow    repository.UnitOfWork
	limits Limits
	cache  LoanCache
	locker Locker
	clock  Clock
}

func NewLoanService(uow repository.UnitOfWork, limits Limits, opts ...Option) *LoanService {
	s := &LoanService{
		uow:    uow,
		limits: limits,
		cache:  noopCache{},
		locker: noopLocker{},
		clock:  SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLoan records a pending loan owned by the caller.
func (s *LoanService) CreateLoan(ctx context.Context, caller domain.Caller, amount decimal.Decimal, termWeeks int) (*domain.Loan, error) {
	if violations := s.validateCreateLoan(amount, termWeeks); len(violations) > 0 {
		return nil, customError.NewValidationError(violations)
	}

	loan := domain.NewLoan(caller.UserID, amount, termWeeks, s.clock.Now())

	err := s.uow.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		return r.Loans.Create(ctx, loan)
	})
	if err != nil {
		logger.Log.Error("failed to create loan", logger.Stringer("user_id", caller.UserID), logger.Error(err))
		return nil, customError.WrapDatabaseError(err)
	}

	loan.Installments = []*domain.Installment{}

	logger.Log.Info("loan created",
		logger.Stringer("loan_id", loan.ID),
		logger.Stringer("user_id", loan.UserID),
		logger.String("amount", loan.Amount.StringFixed(2)),
		logger.Int("term", loan.TermWeeks),
	)
	return loan, nil
}

func (s *LoanService) validateCreateLoan(amount decimal.Decimal, termWeeks int) []customError.FieldViolation {
	var violations []customError.FieldViolation

	switch {
	case amount.LessThan(s.limits.AmountMin):
		violations = append(violations, customError.FieldViolation{
			Field:   "amount",
			Message: fmt.Sprintf("amount should be greater than or equal %s", s.limits.AmountMin),
		})
	case amount.GreaterThan(s.limits.AmountMax):
		violations = append(violations, customError.FieldViolation{
			Field:   "amount",
			Message: fmt.Sprintf("amount should be less than or equal %s", s.limits.AmountMax),
		})
	case !utils.HasCurrencyPrecision(amount):
		violations = append(violations, customError.FieldViolation{
			Field:   "amount",
			Message: "amount should have at most 2 decimal places",
		})
	}

	switch {
	case termWeeks < s.limits.TermMin:
		violations = append(violations, customError.FieldViolation{
			Field:   "term",
			Message: fmt.Sprintf("term should be greater than or equal %d", s.limits.TermMin),
		})
	case termWeeks > s.limits.TermMax:
		violations = append(violations, customError.FieldViolation{
			Field:   "term",
			Message: fmt.Sprintf("term should be less than or equal %d", s.limits.TermMax),
		})
	}

	return violations
}

// ApproveLoan approves a pending loan and creates its weekly installments in
// the same transaction. Only admins may approve.
func (s *LoanService) ApproveLoan(ctx context.Context, caller domain.Caller, loanID uuid.UUID, desiredState string) (*domain.Loan, error) {
	if !caller.IsAdmin {
		return nil, customError.WrapPermissionDenied("only admins can approve loans")
	}

	if desiredState != domain.LoanStateApproved {
		return nil, customError.NewValidationError([]customError.FieldViolation{{
			Field:   "state",
			Message: fmt.Sprintf("state should be %s", domain.LoanStateApproved),
		}})
	}

	approved, err := s.withLoan(ctx, loanID, func(ctx context.Context, r repository.Repos, loan *domain.Loan) error {
		now := s.clock.Now()

		if err := loan.Approve(caller.UserID, now); err != nil {
			switch {
			case errors.Is(err, domain.ErrLoanAlreadyPaid):
				return customError.WrapLoanAlreadyPaidOnApprove()
			case errors.Is(err, domain.ErrLoanAlreadyApproved):
				return customError.WrapLoanAlreadyApproved()
			}
			return err
		}

		if err := r.Loans.Update(ctx, loan); err != nil {
			return err
		}

		installments := buildInstallments(loan, now)
		if err := r.Installments.CreateBatch(ctx, installments); err != nil {
			return err
		}

		loan.Installments = installments
		return nil
	})
	if err != nil {
		return nil, s.mapError(loanID, "approve", err)
	}

	logger.Log.Info("loan approved",
		logger.Stringer("loan_id", loanID),
		logger.Stringer("approved_by", caller.UserID),
		logger.Int("installments", len(approved.Installments)),
	)
	return approved, nil
}

// buildInstallments splits the principal into weekly installments due 7, 14, ...
// days after approval. The last one absorbs the rounding remainder.
func buildInstallments(loan *domain.Loan, approvedAt time.Time) []*domain.Installment {
	amounts := utils.CalculateInstallmentAmounts(loan.Amount, loan.TermWeeks)

	installments := make([]*domain.Installment, 0, len(amounts))
	for i, amount := range amounts {
		sequence := i + 1
		installments = append(installments, &domain.Installment{
			ID:        uuid.New(),
			LoanID:    loan.ID,
			Sequence:  sequence,
			Amount:    amount,
			DueDate:   utils.CalculateDueDate(approvedAt, sequence),
			Status:    domain.InstallmentStatusPending,
			CreatedAt: approvedAt,
		})
	}
	return installments
}

// RepayLoan pays the earliest pending installment. The amount must match it
// exactly. Paying the last pending installment closes the loan.
func (s *LoanService) RepayLoan(ctx context.Context, caller domain.Caller, loanID uuid.UUID, amount decimal.Decimal) (*domain.Loan, error) {
	var closed bool

	repaid, err := s.withLoan(ctx, loanID, func(ctx context.Context, r repository.Repos, loan *domain.Loan) error {
		if !s.canRepay(caller, loan) {
			return customError.WrapPermissionDenied("you are not allowed to repay this loan")
		}

		installment, err := loan.NextPending()
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNoInstallments):
				return customError.WrapLoanNotApproved()
			case errors.Is(err, domain.ErrNoPendingInstallment):
				return customError.WrapLoanFullyPaid()
			}
			return err
		}

		if !amount.Equal(installment.Amount) {
			return customError.WrapRepaymentAmountMismatch(installment.Amount.StringFixed(2))
		}

		now := s.clock.Now()
		if err := installment.MarkPaid(amount, now); err != nil {
			return err
		}
		if err := r.Installments.MarkPaid(ctx, installment); err != nil {
			return err
		}

		if loan.PendingCount() == 0 {
			if err := loan.Close(now); err != nil {
				return err
			}
			if err := r.Loans.Update(ctx, loan); err != nil {
				return err
			}
			closed = true
		}

		return nil
	})
	if err != nil {
		return nil, s.mapError(loanID, "repay", err)
	}

	logger.Log.Info("loan repayment recorded",
		logger.Stringer("loan_id", loanID),
		logger.Stringer("caller_id", caller.UserID),
		logger.String("amount", amount.StringFixed(2)),
		logger.Bool("closed", closed),
	)
	return repaid, nil
}

func (s *LoanService) canRepay(caller domain.Caller, loan *domain.Loan) bool {
	switch s.limits.RepayPolicy {
	case config.RepayPolicyAny:
		return true
	case config.RepayPolicyOwner:
		return loan.IsOwnedBy(caller.UserID)
	default:
		return caller.IsAdmin || loan.IsOwnedBy(caller.UserID)
	}
}

// ListLoans returns the caller's loans, or every loan when an admin asks for all.
func (s *LoanService) ListLoans(ctx context.Context, caller domain.Caller, includeAll bool) ([]*domain.Loan, error) {
	filter := repository.LoanFilter{}
	if !caller.IsAdmin || !includeAll {
		userID := caller.UserID
		filter.UserID = &userID
	}

	var loans []*domain.Loan
	var installments map[uuid.UUID][]*domain.Installment

	err := s.uow.WithinReadTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		loans, err = r.Loans.List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list loans: %w", err)
		}

		ids := make([]uuid.UUID, 0, len(loans))
		for _, loan := range loans {
			ids = append(ids, loan.ID)
		}

		installments, err = r.Installments.ListByLoanIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("list installments for %d loans: %w", len(ids), err)
		}
		return nil
	})
	if err != nil {
		logger.Log.Error("failed to list loans", logger.Stringer("user_id", caller.UserID), logger.Error(err))
		return nil, customError.WrapDatabaseError(err)
	}

	for _, loan := range loans {
		loan.Installments = installments[loan.ID]
		if loan.Installments == nil {
			loan.Installments = []*domain.Installment{}
		}
	}

	return loans, nil
}

// GetLoan returns one loan with its installments to its owner or an admin.
func (s *LoanService) GetLoan(ctx context.Context, caller domain.Caller, loanID uuid.UUID) (*domain.Loan, error) {
	loan, ok := s.cache.Get(ctx, loanID)
	if !ok {
		var err error
		loan, err = s.loadLoan(ctx, loanID)
		if err != nil {
			return nil, s.mapError(loanID, "get", err)
		}
		s.cache.Set(ctx, loan)
	}

	if !caller.IsAdmin && !loan.IsOwnedBy(caller.UserID) {
		return nil, customError.WrapPermissionDenied("you are not allowed to view this loan")
	}

	return loan, nil
}

// loadLoan reads the loan and its installments from one snapshot.
func (s *LoanService) loadLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	var loan *domain.Loan

	err := s.uow.WithinReadTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		loan, err = r.Loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}

		installments, err := r.Installments.ListByLoanID(ctx, loanID)
		if err != nil {
			return err
		}
		if installments == nil {
			installments = []*domain.Installment{}
		}
		loan.Installments = installments
		return nil
	})
	if err != nil {
		return nil, err
	}

	return loan, nil
}

// withLoan takes the distributed lock, when configured, then runs fn in a
// unit of work holding the loan row lock. The committed loan is written to
// the cache before the lock is released.
func (s *LoanService) withLoan(ctx context.Context, loanID uuid.UUID, fn func(ctx context.Context, r repository.Repos, loan *domain.Loan) error) (*domain.Loan, error) {
	unlock, err := s.locker.Lock(ctx, loanID)
	if err != nil {
		return nil, customError.WrapLockUnavailable(loanID.String(), err)
	}
	defer unlock()

	var committed *domain.Loan
	err = s.uow.WithinLoanTx(ctx, loanID, func(ctx context.Context, r repository.Repos, loan *domain.Loan) error {
		if err := fn(ctx, r, loan); err != nil {
			return err
		}
		committed = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, committed)
	return committed, nil
}

// mapError turns repository and transaction failures into business errors.
// Business errors raised inside a unit of work pass through unchanged.
func (s *LoanService) mapError(loanID uuid.UUID, op string, err error) error {
	if businessErr, ok := customError.As(err); ok {
		if businessErr.Kind == customError.KindPersistence {
			logger.Log.Error("loan operation failed",
				logger.String("op", op),
				logger.Stringer("loan_id", loanID),
				logger.Error(err),
			)
		}
		return businessErr
	}

	if errors.Is(err, repository.ErrNotFound) {
		return customError.WrapLoanNotFound(loanID.String())
	}

	logger.Log.Error("loan operation failed",
		logger.String("op", op),
		logger.Stringer("loan_id", loanID),
		logger.Error(err),
	)
	return customError.WrapDatabaseError(err)
}
