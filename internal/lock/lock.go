package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-engine/pkg/logger"
)

const loanLockPrefix = "lock:loan:"

// Options tunes mutex acquisition.
type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// RedisLocker serializes work on one loan across processes.
type RedisLocker struct {
	rs   *redsync.Redsync
	opts Options
}

func NewRedisLocker(client *redis.Client, opts Options) *RedisLocker {
	return &RedisLocker{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
	}
}

// Lock acquires the loan mutex. The returned func releases it.
func (l *RedisLocker) Lock(ctx context.Context, loanID uuid.UUID) (func(), error) {
	mutex := l.rs.NewMutex(
		loanLockPrefix+loanID.String(),
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire lock for loan %s: %w", loanID, err)
	}

	return func() {
		// the caller's ctx may already be done
		if ok, err := mutex.UnlockContext(context.Background()); err != nil || !ok {
			logger.Log.Warn("failed to release loan lock",
				logger.Stringer("loan_id", loanID),
				logger.Bool("released", ok),
				logger.Error(err),
			)
		}
	}, nil
}
