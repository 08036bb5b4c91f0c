package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApprovedLoan(t *testing.T, amounts ...string) *Loan {
	t.Helper()

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	loan := NewLoan(uuid.New(), decimal.RequireFromString("100"), len(amounts), now)
	require.NoError(t, loan.Approve(uuid.New(), now))

	for i, amount := range amounts {
		loan.Installments = append(loan.Installments, &Installment{
			ID:       uuid.New(),
			LoanID:   loan.ID,
			Sequence: i + 1,
			Amount:   decimal.RequireFromString(amount),
			DueDate:  now.AddDate(0, 0, 7*(i+1)),
			Status:   InstallmentStatusPending,
		})
	}
	return loan
}

func TestNewLoan(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()

	loan := NewLoan(userID, decimal.NewFromInt(10000), 3, now)

	assert.NotEqual(t, uuid.Nil, loan.ID)
	assert.Equal(t, userID, loan.UserID)
	assert.Equal(t, LoanStatePending, loan.State)
	assert.Nil(t, loan.ApprovedBy)
	assert.Nil(t, loan.ApprovedDate)
	assert.Nil(t, loan.ClosedDate)
	assert.Empty(t, loan.Installments)
}

func TestLoan_Approve(t *testing.T) {
	now := time.Now().UTC()
	admin := uuid.New()

	tests := []struct {
		name        string
		state       string
		expectedErr error
	}{
		{name: "pending loan", state: LoanStatePending},
		{name: "already approved", state: LoanStateApproved, expectedErr: ErrLoanAlreadyApproved},
		{name: "already paid", state: LoanStatePaid, expectedErr: ErrLoanAlreadyPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := NewLoan(uuid.New(), decimal.NewFromInt(5000), 5, now)
			loan.State = tt.state

			err := loan.Approve(admin, now)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Equal(t, tt.state, loan.State)
				assert.Nil(t, loan.ApprovedBy)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, LoanStateApproved, loan.State)
			require.NotNil(t, loan.ApprovedBy)
			assert.Equal(t, admin, *loan.ApprovedBy)
			require.NotNil(t, loan.ApprovedDate)
			assert.True(t, loan.ApprovedDate.Equal(now))
		})
	}
}

func TestLoan_Close(t *testing.T) {
	now := time.Now().UTC()

	pending := NewLoan(uuid.New(), decimal.NewFromInt(5000), 5, now)
	assert.ErrorIs(t, pending.Close(now), ErrLoanNotApproved)
	assert.Nil(t, pending.ClosedDate)

	approved := newApprovedLoan(t, "50", "50")
	require.NoError(t, approved.Close(now))
	assert.Equal(t, LoanStatePaid, approved.State)
	require.NotNil(t, approved.ClosedDate)

	assert.ErrorIs(t, approved.Close(now), ErrLoanAlreadyPaid)
}

func TestLoan_NextPending(t *testing.T) {
	t.Run("no installments", func(t *testing.T) {
		loan := NewLoan(uuid.New(), decimal.NewFromInt(5000), 5, time.Now())
		_, err := loan.NextPending()
		assert.ErrorIs(t, err, ErrNoInstallments)
	})

	t.Run("earliest pending first", func(t *testing.T) {
		loan := newApprovedLoan(t, "33.33", "33.33", "33.34")
		require.NoError(t, loan.Installments[0].MarkPaid(decimal.RequireFromString("33.33"), time.Now()))

		next, err := loan.NextPending()
		require.NoError(t, err)
		assert.Equal(t, 2, next.Sequence)
		assert.Equal(t, 2, loan.PendingCount())
	})

	t.Run("all paid", func(t *testing.T) {
		loan := newApprovedLoan(t, "50", "50")
		for _, installment := range loan.Installments {
			require.NoError(t, installment.MarkPaid(installment.Amount, time.Now()))
		}

		_, err := loan.NextPending()
		assert.ErrorIs(t, err, ErrNoPendingInstallment)
		assert.Zero(t, loan.PendingCount())
	})
}

func TestInstallment_MarkPaid(t *testing.T) {
	now := time.Now().UTC()
	installment := &Installment{Amount: decimal.RequireFromString("3333.33"), Status: InstallmentStatusPending}

	require.NoError(t, installment.MarkPaid(decimal.RequireFromString("3333.33"), now))
	assert.Equal(t, InstallmentStatusPaid, installment.Status)
	require.NotNil(t, installment.PaidAmount)
	assert.True(t, installment.PaidAmount.Equal(decimal.RequireFromString("3333.33")))

	err := installment.MarkPaid(decimal.RequireFromString("1"), now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInstallmentAlreadyPaid)
	assert.True(t, installment.PaidAmount.Equal(decimal.RequireFromString("3333.33")))
	assert.True(t, installment.PaidDate.Equal(now))
}

func TestLoan_Clone(t *testing.T) {
	loan := newApprovedLoan(t, "50", "50")

	clone := loan.Clone()
	require.NoError(t, clone.Installments[0].MarkPaid(decimal.NewFromInt(50), time.Now()))
	*clone.ApprovedBy = uuid.New()

	assert.Equal(t, InstallmentStatusPending, loan.Installments[0].Status)
	assert.NotEqual(t, *loan.ApprovedBy, *clone.ApprovedBy)
}

func TestLoan_Revision(t *testing.T) {
	now := time.Now().UTC()
	pending := NewLoan(uuid.New(), decimal.NewFromInt(100), 2, now)
	assert.Equal(t, 0, pending.Revision())

	loan := newApprovedLoan(t, "50", "50")
	revisions := []int{loan.Revision()}

	for _, installment := range loan.Installments {
		require.NoError(t, installment.MarkPaid(installment.Amount, now))
		revisions = append(revisions, loan.Revision())
	}
	require.NoError(t, loan.Close(now))
	revisions = append(revisions, loan.Revision())

	assert.Equal(t, []int{2, 3, 4, 5}, revisions)
}
