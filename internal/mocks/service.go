package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/loan-engine/internal/domain"
)

type MockLoanEngine struct {
	mock.Mock
}

// NewMockLoanEngine creates a new mock loan engine instance
func NewMockLoanEngine() *MockLoanEngine {
	return &MockLoanEngine{}
}

func (m *MockLoanEngine) CreateLoan(ctx context.Context, caller domain.Caller, amount decimal.Decimal, termWeeks int) (*domain.Loan, error) {
	args := m.Called(ctx, caller, amount, termWeeks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanEngine) ApproveLoan(ctx context.Context, caller domain.Caller, loanID uuid.UUID, desiredState string) (*domain.Loan, error) {
	args := m.Called(ctx, caller, loanID, desiredState)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanEngine) RepayLoan(ctx context.Context, caller domain.Caller, loanID uuid.UUID, amount decimal.Decimal) (*domain.Loan, error) {
	args := m.Called(ctx, caller, loanID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanEngine) ListLoans(ctx context.Context, caller domain.Caller, includeAll bool) ([]*domain.Loan, error) {
	args := m.Called(ctx, caller, includeAll)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanEngine) GetLoan(ctx context.Context, caller domain.Caller, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, caller, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyUpcoming(ctx context.Context, due *domain.DueInstallment, daysLeft int) error {
	args := m.Called(ctx, due, daysLeft)
	return args.Error(0)
}

func (m *MockNotifier) NotifyOverdue(ctx context.Context, due *domain.DueInstallment, daysOverdue int) error {
	args := m.Called(ctx, due, daysOverdue)
	return args.Error(0)
}
