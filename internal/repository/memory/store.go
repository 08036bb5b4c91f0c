// Package memory is an in-process store with the same transactional
// semantics as the postgres repositories.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/repository"
)

// Store keeps loans with their installments. Writes made inside a unit of work
// are staged and only become visible on commit.
type Store struct {
	mu        sync.RWMutex
	loans     map[uuid.UUID]*domain.Loan
	loanLocks map[uuid.UUID]*loanLock
	txTimeout time.Duration
}

// loanLock is held by at most one unit of work. refs counts the holders and
// waiters so the entry can be dropped once nobody uses it.
type loanLock struct {
	ch   chan struct{}
	refs int
}

var errReadOnly = errors.New("cannot write in a read-only transaction")

var _ repository.UnitOfWork = (*Store)(nil)

func NewStore(txTimeout time.Duration) *Store {
	return &Store{
		loans:     make(map[uuid.UUID]*domain.Loan),
		loanLocks: make(map[uuid.UUID]*loanLock),
		txTimeout: txTimeout,
	}
}

func (s *Store) Repos() repository.Repos {
	tx := &tx{store: s, autoCommit: true}
	return repository.Repos{Loans: tx, Installments: tx}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	t := &tx{store: s, staged: make(map[uuid.UUID]*domain.Loan)}
	if err := fn(ctx, repository.Repos{Loans: t, Installments: t}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	s.commit(t.staged)
	return nil
}

// WithinReadTx runs fn against a copy of the store taken when it starts.
// Commits made by other units of work while fn runs are not visible to it.
func (s *Store) WithinReadTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	staged := make(map[uuid.UUID]*domain.Loan)
	for _, loan := range s.snapshot() {
		staged[loan.ID] = loan
	}

	t := &tx{store: s, staged: staged, readOnly: true}
	return fn(ctx, repository.Repos{Loans: t, Installments: t})
}

func (s *Store) WithinLoanTx(ctx context.Context, loanID uuid.UUID, fn func(ctx context.Context, r repository.Repos, loan *domain.Loan) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	unlock, err := s.lockLoan(ctx, loanID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
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

// lockLoan blocks until the loan's lock is free or ctx expires.
func (s *Store) lockLoan(ctx context.Context, loanID uuid.UUID) (func(), error) {
	s.mu.Lock()
	lock, ok := s.loanLocks[loanID]
	if !ok {
		lock = &loanLock{ch: make(chan struct{}, 1)}
		s.loanLocks[loanID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
		return func() {
			<-lock.ch
			s.releaseLoanLock(loanID, lock)
		}, nil
	case <-ctx.Done():
		s.releaseLoanLock(loanID, lock)
		return nil, fmt.Errorf("waiting for loan lock: %w", ctx.Err())
	}
}

func (s *Store) releaseLoanLock(loanID uuid.UUID, lock *loanLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(s.loanLocks, loanID)
	}
}

func (s *Store) commit(staged map[uuid.UUID]*domain.Loan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, loan := range staged {
		s.loans[id] = loan
	}
}

func (s *Store) load(id uuid.UUID) (*domain.Loan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, ok := s.loans[id]
	if !ok {
		return nil, false
	}
	return loan.Clone(), true
}

func (s *Store) snapshot() []*domain.Loan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loans := make([]*domain.Loan, 0, len(s.loans))
	for _, loan := range s.loans {
		loans = append(loans, loan.Clone())
	}
	return loans
}

// tx implements both repositories over a staging area.
type tx struct {
	store      *Store
	staged     map[uuid.UUID]*domain.Loan
	autoCommit bool
	readOnly   bool
}

func (t *tx) current(id uuid.UUID) (*domain.Loan, bool) {
	if loan, ok := t.staged[id]; ok {
		return loan, true
	}
	if t.readOnly {
		return nil, false
	}
	return t.store.load(id)
}

// all returns copies of every loan visible to the transaction.
func (t *tx) all() []*domain.Loan {
	if !t.readOnly {
		return t.store.snapshot()
	}

	loans := make([]*domain.Loan, 0, len(t.staged))
	for _, loan := range t.staged {
		loans = append(loans, loan.Clone())
	}
	return loans
}

func (t *tx) stage(loan *domain.Loan) {
	if t.autoCommit {
		t.store.commit(map[uuid.UUID]*domain.Loan{loan.ID: loan})
		return
	}
	t.staged[loan.ID] = loan
}

func withoutInstallments(loan *domain.Loan) *domain.Loan {
	c := loan.Clone()
	c.Installments = nil
	return c
}

func (t *tx) Create(ctx context.Context, loan *domain.Loan) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, exists := t.current(loan.ID); exists {
		return fmt.Errorf("insert loan: duplicate id %s", loan.ID)
	}
	t.stage(withoutInstallments(loan))
	return nil
}

func (t *tx) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	loan, ok := t.current(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return withoutInstallments(loan), nil
}

func (t *tx) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return t.GetByID(ctx, id)
}

func (t *tx) List(ctx context.Context, filter repository.LoanFilter) ([]*domain.Loan, error) {
	all := t.all()

	loans := make([]*domain.Loan, 0, len(all))
	for _, loan := range all {
		if filter.UserID != nil && loan.UserID != *filter.UserID {
			continue
		}
		loan.Installments = nil
		loans = append(loans, loan)
	}

	sort.Slice(loans, func(i, j int) bool {
		if loans[i].CreatedAt.Equal(loans[j].CreatedAt) {
			return loans[i].ID.String() < loans[j].ID.String()
		}
		return loans[i].CreatedAt.After(loans[j].CreatedAt)
	})

	return loans, nil
}

func (t *tx) Update(ctx context.Context, loan *domain.Loan) error {
	if t.readOnly {
		return errReadOnly
	}
	existing, ok := t.current(loan.ID)
	if !ok {
		return repository.ErrNotFound
	}

	updated := existing.Clone()
	updated.State = loan.State
	updated.ApprovedBy = loan.Clone().ApprovedBy
	updated.ApprovedDate = loan.Clone().ApprovedDate
	updated.ClosedDate = loan.Clone().ClosedDate
	updated.UpdatedAt = loan.UpdatedAt

	t.stage(updated)
	return nil
}

func (t *tx) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	if t.readOnly {
		return errReadOnly
	}
	if len(installments) == 0 {
		return nil
	}

	byLoan := make(map[uuid.UUID][]*domain.Installment)
	for _, installment := range installments {
		byLoan[installment.LoanID] = append(byLoan[installment.LoanID], installment)
	}

	updates := make([]*domain.Loan, 0, len(byLoan))
	for loanID, batch := range byLoan {
		existing, ok := t.current(loanID)
		if !ok {
			return fmt.Errorf("insert installments: loan %s does not exist", loanID)
		}

		updated := existing.Clone()
		sequences := make(map[int]bool, len(updated.Installments))
		for _, installment := range updated.Installments {
			sequences[installment.Sequence] = true
		}

		for _, installment := range batch {
			if sequences[installment.Sequence] {
				return fmt.Errorf("insert installments: duplicate sequence %d for loan %s", installment.Sequence, loanID)
			}
			sequences[installment.Sequence] = true
			updated.Installments = append(updated.Installments, installment.Clone())
		}

		sort.Slice(updated.Installments, func(i, j int) bool {
			return updated.Installments[i].Sequence < updated.Installments[j].Sequence
		})
		updates = append(updates, updated)
	}

	for _, loan := range updates {
		t.stage(loan)
	}
	return nil
}

func (t *tx) ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	loan, ok := t.current(loanID)
	if !ok {
		return []*domain.Installment{}, nil
	}

	installments := make([]*domain.Installment, 0, len(loan.Installments))
	for _, installment := range loan.Installments {
		installments = append(installments, installment.Clone())
	}
	return installments, nil
}

func (t *tx) ListByLoanIDs(ctx context.Context, loanIDs []uuid.UUID) (map[uuid.UUID][]*domain.Installment, error) {
	grouped := make(map[uuid.UUID][]*domain.Installment, len(loanIDs))
	for _, loanID := range loanIDs {
		installments, err := t.ListByLoanID(ctx, loanID)
		if err != nil {
			return nil, err
		}
		if len(installments) > 0 {
			grouped[loanID] = installments
		}
	}
	return grouped, nil
}

func (t *tx) MarkPaid(ctx context.Context, installment *domain.Installment) error {
	if t.readOnly {
		return errReadOnly
	}
	existing, ok := t.current(installment.LoanID)
	if !ok {
		return repository.ErrNotFound
	}

	updated := existing.Clone()
	for _, current := range updated.Installments {
		if current.ID != installment.ID {
			continue
		}
		if current.Status != domain.InstallmentStatusPending {
			return repository.ErrConflict
		}

		current.Status = installment.Status
		current.PaidAmount = installment.Clone().PaidAmount
		current.PaidDate = installment.Clone().PaidDate
		t.stage(updated)
		return nil
	}

	return repository.ErrConflict
}

func (t *tx) ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.DueInstallment, error) {
	due := make([]*domain.DueInstallment, 0)
	for _, loan := range t.all() {
		for _, installment := range loan.Installments {
			if installment.Status != domain.InstallmentStatusPending {
				continue
			}
			if installment.DueDate.Before(from) || !installment.DueDate.Before(to) {
				continue
			}
			due = append(due, &domain.DueInstallment{
				InstallmentID: installment.ID,
				LoanID:        loan.ID,
				UserID:        loan.UserID,
				Sequence:      installment.Sequence,
				Amount:        installment.Amount,
				DueDate:       installment.DueDate,
			})
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].DueDate.Equal(due[j].DueDate) {
			return due[i].LoanID.String() < due[j].LoanID.String()
		}
		return due[i].DueDate.Before(due[j].DueDate)
	})
	return due, nil
}
