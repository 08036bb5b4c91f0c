package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/repository"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) List(ctx context.Context, filter repository.LoanFilter) ([]*domain.Loan, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

type MockInstallmentRepository struct {
	mock.Mock
}

func (m *MockInstallmentRepository) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	args := m.Called(ctx, installments)
	return args.Error(0)
}

func (m *MockInstallmentRepository) ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) ListByLoanIDs(ctx context.Context, loanIDs []uuid.UUID) (map[uuid.UUID][]*domain.Installment, error) {
	args := m.Called(ctx, loanIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]*domain.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) MarkPaid(ctx context.Context, installment *domain.Installment) error {
	args := m.Called(ctx, installment)
	return args.Error(0)
}

func (m *MockInstallmentRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.DueInstallment, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DueInstallment), args.Error(1)
}

// MockUnitOfWork runs callbacks against the mock repositories.
// WithinTx returns its configured error only after fn succeeds, like a failed commit.
// WithinLoanTx returns (loan, commitErr); a nil loan short-circuits with commitErr.
type MockUnitOfWork struct {
	mock.Mock
	Loans        *MockLoanRepository
	Installments *MockInstallmentRepository
}

func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		Loans:        &MockLoanRepository{},
		Installments: &MockInstallmentRepository{},
	}
}

func (m *MockUnitOfWork) Repos() repository.Repos {
	return repository.Repos{Loans: m.Loans, Installments: m.Installments}
}

func (m *MockUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	args := m.Called(ctx)
	if err := fn(ctx, m.Repos()); err != nil {
		return err
	}
	return args.Error(0)
}

func (m *MockUnitOfWork) WithinReadTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	m.Called(ctx)
	return fn(ctx, m.Repos())
}

func (m *MockUnitOfWork) WithinLoanTx(ctx context.Context, loanID uuid.UUID, fn func(ctx context.Context, r repository.Repos, loan *domain.Loan) error) error {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return args.Error(1)
	}
	if err := fn(ctx, m.Repos(), args.Get(0).(*domain.Loan)); err != nil {
		return err
	}
	return args.Error(1)
}

// AssertAll checks expectations on the unit of work and both repositories.
func (m *MockUnitOfWork) AssertAll(t mock.TestingT) {
	m.AssertExpectations(t)
	m.Loans.AssertExpectations(t)
	m.Installments.AssertExpectations(t)
}
