package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-engine/internal/domain"
)

func expectLockedLoan(mock sqlmock.Sqlmock, loanID uuid.UUID, state string, now time.Time) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '2000ms'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE id = $1 FOR UPDATE")).
		WithArgs(loanID).
		WillReturnRows(sqlmock.NewRows(loanCols).
			AddRow(loanID.String(), uuid.NewString(), "10000", 3, state, nil, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM loan_installments")).
		WithArgs(loanID).
		WillReturnRows(sqlmock.NewRows(installmentCols))
}

func TestSQLUnitOfWork_WithinLoanTx_Commit(t *testing.T) {
	db, mock := setupMockDB(t)
	uow := NewSQLUnitOfWork(db, 2*time.Second)
	loanID := uuid.New()
	now := time.Now().UTC()

	expectLockedLoan(mock, loanID, domain.LoanStatePending, now)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE loans")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO loan_installments")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := uow.WithinLoanTx(context.Background(), loanID, func(ctx context.Context, r Repos, loan *domain.Loan) error {
		assert.Equal(t, loanID, loan.ID)
		assert.Empty(t, loan.Installments)

		require.NoError(t, loan.Approve(uuid.New(), now))
		if err := r.Loans.Update(ctx, loan); err != nil {
			return err
		}
		return r.Installments.CreateBatch(ctx, []*domain.Installment{{
			ID: uuid.New(), LoanID: loanID, Sequence: 1, Status: domain.InstallmentStatusPending, CreatedAt: now,
		}})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLUnitOfWork_WithinLoanTx_RollbackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	uow := NewSQLUnitOfWork(db, 2*time.Second)
	loanID := uuid.New()
	now := time.Now().UTC()
	insertErr := errors.New("duplicate key value violates unique constraint")

	expectLockedLoan(mock, loanID, domain.LoanStatePending, now)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE loans")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO loan_installments")).WillReturnError(insertErr)
	mock.ExpectRollback()

	err := uow.WithinLoanTx(context.Background(), loanID, func(ctx context.Context, r Repos, loan *domain.Loan) error {
		require.NoError(t, loan.Approve(uuid.New(), now))
		if err := r.Loans.Update(ctx, loan); err != nil {
			return err
		}
		return r.Installments.CreateBatch(ctx, []*domain.Installment{{ID: uuid.New(), LoanID: loanID, Sequence: 1}})
	})

	assert.ErrorIs(t, err, insertErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLUnitOfWork_WithinLoanTx_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	uow := NewSQLUnitOfWork(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnRows(sqlmock.NewRows(loanCols))
	mock.ExpectRollback()

	called := false
	err := uow.WithinLoanTx(context.Background(), uuid.New(), func(context.Context, Repos, *domain.Loan) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLUnitOfWork_WithinTx_BeginError(t *testing.T) {
	db, mock := setupMockDB(t)
	uow := NewSQLUnitOfWork(db, time.Second)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := uow.WithinTx(context.Background(), func(context.Context, Repos) error {
		t.Fatal("callback must not run")
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "error starting transaction")
}

func TestSQLUnitOfWork_WithinTx_CommitError(t *testing.T) {
	db, mock := setupMockDB(t)
	uow := NewSQLUnitOfWork(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO loans")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := uow.WithinTx(context.Background(), func(ctx context.Context, r Repos) error {
		return r.Loans.Create(ctx, domain.NewLoan(uuid.New(), decimal10k(), 3, time.Now().UTC()))
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "error committing transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLUnitOfWork_WithinReadTx(t *testing.T) {
	db, mock := setupMockDB(t)
	uow := NewSQLUnitOfWork(db, time.Second)
	loanID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE id = $1")).
		WithArgs(loanID).
		WillReturnRows(sqlmock.NewRows(loanCols).
			AddRow(loanID.String(), uuid.NewString(), "10000", 3, domain.LoanStatePending, nil, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM loan_installments")).
		WithArgs(loanID).
		WillReturnRows(sqlmock.NewRows(installmentCols))
	mock.ExpectCommit()

	err := uow.WithinReadTx(context.Background(), func(ctx context.Context, r Repos) error {
		loan, err := r.Loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		assert.Equal(t, loanID, loan.ID)

		_, err = r.Installments.ListByLoanID(ctx, loanID)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLUnitOfWork_WithinReadTx_RollbackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	uow := NewSQLUnitOfWork(db, time.Second)
	loanID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE id = $1")).
		WithArgs(loanID).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := uow.WithinReadTx(context.Background(), func(ctx context.Context, r Repos) error {
		_, err := r.Loans.GetByID(ctx, loanID)
		return err
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
