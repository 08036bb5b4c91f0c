package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-engine/internal/config"
	"github.com/segyhp/loan-engine/internal/domain"
)

// Clock supplies the current time. Timestamps are UTC.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, truncated to what postgres stores.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// LoanCache is a best-effort read cache for GetLoan. Set must keep an entry
// with a higher Revision over the one passed in.
type LoanCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Loan, bool)
	Set(ctx context.Context, loan *domain.Loan)
}

// Locker takes a cross-process lock on a loan before its transaction starts.
type Locker interface {
	Lock(ctx context.Context, loanID uuid.UUID) (func(), error)
}

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (*domain.Loan, bool) { return nil, false }
func (noopCache) Set(context.Context, *domain.Loan)                   {}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, uuid.UUID) (func(), error) { return func() {}, nil }

// Limits are the accepted loan request ranges, bounds inclusive.
type Limits struct {
	AmountMin   decimal.Decimal
	AmountMax   decimal.Decimal
	TermMin     int
	TermMax     int
	RepayPolicy string
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		AmountMin:   decimal.NewFromInt(1000),
		AmountMax:   decimal.NewFromInt(1000000),
		TermMin:     1,
		TermMax:     52,
		RepayPolicy: config.RepayPolicyOwnerOrAdmin,
	}
}

func LimitsFromConfig(cfg config.LoanConfig) Limits {
	amountMin, amountMax := cfg.AmountBounds()
	return Limits{
		AmountMin:   amountMin,
		AmountMax:   amountMax,
		TermMin:     cfg.TermMin,
		TermMax:     cfg.TermMax,
		RepayPolicy: cfg.RepayPolicy,
	}
}

type Option func(*LoanService)

func WithCache(cache LoanCache) Option {
	return func(s *LoanService) { s.cache = cache }
}

func WithLocker(locker Locker) Option {
	return func(s *LoanService) { s.locker = locker }
}

func WithClock(clock Clock) Option {
	return func(s *LoanService) { s.clock = clock }
}
