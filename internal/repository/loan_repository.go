package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-engine/internal/domain"
)

const loanColumns = `id, user_id, amount, term_weeks, state, approved_by, approved_date, closed_date, created_at, updated_at`

type loanRepository struct {
	db sqlx.ExtContext
}

// NewLoanRepository binds a loan repository to a *sqlx.DB or *sqlx.Tx.
func NewLoanRepository(db sqlx.ExtContext) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.UserID,
		loan.Amount,
		loan.TermWeeks,
		loan.State,
		loan.ApprovedBy,
		loan.ApprovedDate,
		loan.ClosedDate,
		loan.CreatedAt,
		loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}

	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id)
}

func (r *loanRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Loan, error) {
	var loan domain.Loan
	err := sqlx.GetContext(ctx, r.db, &loan, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select loan: %w", err)
	}

	return &loan, nil
}

func (r *loanRepository) List(ctx context.Context, filter LoanFilter) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans`
	var args []interface{}

	if filter.UserID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *filter.UserID)
	}
	query += ` ORDER BY created_at DESC, id`

	loans := make([]*domain.Loan, 0)
	if err := sqlx.SelectContext(ctx, r.db, &loans, query, args...); err != nil {
		return nil, fmt.Errorf("select loans: %w", err)
	}

	return loans, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET state = $2, approved_by = $3, approved_date = $4, closed_date = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.State,
		loan.ApprovedBy,
		loan.ApprovedDate,
		loan.ClosedDate,
		loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update loan rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
