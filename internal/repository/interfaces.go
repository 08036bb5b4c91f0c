package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-engine/internal/domain"
)

var (
	// ErrNotFound is returned when a loan or installment does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a guarded update matched no row, e.g. an installment already paid.
	ErrConflict = errors.New("record was modified concurrently")
)

// LoanFilter narrows List. A nil UserID lists every loan.
type LoanFilter struct {
	UserID *uuid.UUID
}

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID, without installments
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetByIDForUpdate retrieves a loan and locks its row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// List returns loans newest first
	List(ctx context.Context, filter LoanFilter) ([]*domain.Loan, error)

	// Update persists the loan state, approval and closure fields
	Update(ctx context.Context, loan *domain.Loan) error
}

// InstallmentRepository defines the interface for installment data operations
type InstallmentRepository interface {
	// CreateBatch inserts the full installment set of a loan
	CreateBatch(ctx context.Context, installments []*domain.Installment) error

	// ListByLoanID returns installments of a loan in sequence order
	ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error)

	// ListByLoanIDs returns installments grouped by loan, each group in sequence order
	ListByLoanIDs(ctx context.Context, loanIDs []uuid.UUID) (map[uuid.UUID][]*domain.Installment, error)

	// MarkPaid records a payment on a pending installment
	MarkPaid(ctx context.Context, installment *domain.Installment) error

	// ListDueBetween returns pending installments with from <= due_date < to
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.DueInstallment, error)
}

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Loans        LoanRepository
	Installments InstallmentRepository
}

// UnitOfWork is the transaction boundary of the lifecycle engine.
// The callback's error decides the outcome: nil commits, anything else rolls back.
type UnitOfWork interface {
	// Repos returns repositories outside of any transaction, for reads.
	Repos() Repos

	// WithinTx runs fn in a single transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error

	// WithinReadTx runs fn in a read-only transaction where every read sees the same snapshot.
	WithinReadTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error

	// WithinLoanTx locks the loan first, loads its installments and passes it in.
	// Concurrent calls for the same loan are serialized; other loans are unaffected.
	WithinLoanTx(ctx context.Context, loanID uuid.UUID, fn func(ctx context.Context, r Repos, loan *domain.Loan) error) error
}
