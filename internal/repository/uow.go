package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/pkg/logger"
)

const transactionRollbackError = "error rolling back transaction"

type sqlUnitOfWork struct {
	db        *sqlx.DB
	txTimeout time.Duration
}

// NewSQLUnitOfWork returns a UnitOfWork over postgres. Each transaction is bounded
// by txTimeout, and waits on row locks fail once lock_timeout elapses.
func NewSQLUnitOfWork(db *sqlx.DB, txTimeout time.Duration) UnitOfWork {
	return &sqlUnitOfWork{db: db, txTimeout: txTimeout}
}

func newRepos(db sqlx.ExtContext) Repos {
	return Repos{
		Loans:        NewLoanRepository(db),
		Installments: NewInstallmentRepository(db),
	}
}

func (u *sqlUnitOfWork) Repos() Repos {
	return newRepos(u.db)
}

func (u *sqlUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, u.txTimeout)
	defer cancel()

	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(tx)
			panic(p)
		}
	}()

	lockTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.txTimeout.Milliseconds())
	if _, err = tx.ExecContext(ctx, lockTimeout); err != nil {
		rollback(tx)
		return fmt.Errorf("error setting lock timeout: %w", err)
	}

	if err = fn(ctx, newRepos(tx)); err != nil {
		rollback(tx)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

func (u *sqlUnitOfWork) WithinReadTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, u.txTimeout)
	defer cancel()

	tx, err := u.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("error starting read transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(tx)
			panic(p)
		}
	}()

	if err = fn(ctx, newRepos(tx)); err != nil {
		rollback(tx)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing read transaction: %w", err)
	}

	return nil
}

func (u *sqlUnitOfWork) WithinLoanTx(ctx context.Context, loanID uuid.UUID, fn func(ctx context.Context, r Repos, loan *domain.Loan) error) error {
	return u.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		loan, err := r.Loans.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}

		installments, err := r.Installments.ListByLoanID(ctx, loanID)
		if err != nil {
			return err
		}
		loan.Installments = installments

		return fn(ctx, r, loan)
	})
}

func rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil {
		logger.Log.Error(transactionRollbackError, logger.Error(err))
	}
}
