package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/segyhp/loan-engine/internal/domain"
)

const installmentColumns = `id, loan_id, sequence, amount, due_date, status, paid_amount, paid_date, created_at`

type installmentRepository struct {
	db sqlx.ExtContext
}

// NewInstallmentRepository binds an installment repository to a *sqlx.DB or *sqlx.Tx.
func NewInstallmentRepository(db sqlx.ExtContext) InstallmentRepository {
	return &installmentRepository{db: db}
}

func (r *installmentRepository) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	if len(installments) == 0 {
		return nil
	}

	query := `
		INSERT INTO loan_installments (` + installmentColumns + `)
		VALUES (:id, :loan_id, :sequence, :amount, :due_date, :status, :paid_amount, :paid_date, :created_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, installments); err != nil {
		return fmt.Errorf("insert installments: %w", err)
	}

	return nil
}

func (r *installmentRepository) ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM loan_installments
		WHERE loan_id = $1
		ORDER BY sequence
	`

	installments := make([]*domain.Installment, 0)
	if err := sqlx.SelectContext(ctx, r.db, &installments, query, loanID); err != nil {
		return nil, fmt.Errorf("select installments: %w", err)
	}

	return installments, nil
}

func (r *installmentRepository) ListByLoanIDs(ctx context.Context, loanIDs []uuid.UUID) (map[uuid.UUID][]*domain.Installment, error) {
	grouped := make(map[uuid.UUID][]*domain.Installment, len(loanIDs))
	if len(loanIDs) == 0 {
		return grouped, nil
	}

	ids := make([]string, len(loanIDs))
	for i, id := range loanIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT ` + installmentColumns + `
		FROM loan_installments
		WHERE loan_id = ANY($1::uuid[])
		ORDER BY loan_id, sequence
	`

	var installments []*domain.Installment
	if err := sqlx.SelectContext(ctx, r.db, &installments, query, pq.StringArray(ids)); err != nil {
		return nil, fmt.Errorf("select installments: %w", err)
	}

	for _, installment := range installments {
		grouped[installment.LoanID] = append(grouped[installment.LoanID], installment)
	}

	return grouped, nil
}

func (r *installmentRepository) MarkPaid(ctx context.Context, installment *domain.Installment) error {
	query := `
		UPDATE loan_installments
		SET status = $2, paid_amount = $3, paid_date = $4
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query,
		installment.ID,
		installment.Status,
		installment.PaidAmount,
		installment.PaidDate,
	)
	if err != nil {
		return fmt.Errorf("update installment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update installment rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}

	return nil
}

func (r *installmentRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.DueInstallment, error) {
	query := `
		SELECT i.id AS installment_id, i.loan_id, l.user_id, i.sequence, i.amount, i.due_date
		FROM loan_installments i
		JOIN loans l ON l.id = i.loan_id
		WHERE i.status = 'pending' AND i.due_date >= $1 AND i.due_date < $2
		ORDER BY i.due_date, i.loan_id
	`

	due := make([]*domain.DueInstallment, 0)
	if err := sqlx.SelectContext(ctx, r.db, &due, query, from, to); err != nil {
		return nil, fmt.Errorf("select due installments: %w", err)
	}

	return due, nil
}
