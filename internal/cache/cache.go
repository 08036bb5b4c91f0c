package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/pkg/logger"
)

const loanKeyPrefix = "loan:"

// setIfNewer stores the loan unless the cached copy carries a higher revision.
// KEYS[1] loan key, ARGV[1] revision, ARGV[2] JSON, ARGV[3] TTL in milliseconds.
var setIfNewer = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'rev'))
if current and current > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'rev', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisLoanCache caches loans (with installments) as a hash of revision and JSON.
// Cache failures are logged and treated as misses; they never fail an operation.
type RedisLoanCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLoanCache(client *redis.Client, ttl time.Duration) *RedisLoanCache {
	return &RedisLoanCache{client: client, ttl: ttl}
}

func loanKey(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", loanKeyPrefix, id)
}

func (c *RedisLoanCache) Get(ctx context.Context, id uuid.UUID) (*domain.Loan, bool) {
	data, err := c.client.HGet(ctx, loanKey(id), "data").Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("loan cache get failed", logger.Stringer("loan_id", id), logger.Error(err))
		}
		return nil, false
	}

	var loan domain.Loan
	if err := json.Unmarshal(data, &loan); err != nil {
		logger.Log.Warn("loan cache entry is corrupt", logger.Stringer("loan_id", id), logger.Error(err))
		c.Delete(ctx, id)
		return nil, false
	}

	return &loan, true
}

// Set caches loan. A copy read before a later commit never replaces the newer one.
func (c *RedisLoanCache) Set(ctx context.Context, loan *domain.Loan) {
	data, err := json.Marshal(loan)
	if err != nil {
		logger.Log.Warn("loan cache encode failed", logger.Stringer("loan_id", loan.ID), logger.Error(err))
		return
	}

	stored, err := setIfNewer.Run(ctx, c.client, []string{loanKey(loan.ID)},
		loan.Revision(), data, c.ttl.Milliseconds()).Int()
	if err != nil {
		logger.Log.Warn("loan cache set failed", logger.Stringer("loan_id", loan.ID), logger.Error(err))
		return
	}
	if stored == 0 {
		logger.Log.Debug("loan cache kept newer entry",
			logger.Stringer("loan_id", loan.ID),
			logger.Int("revision", loan.Revision()),
		)
	}
}

func (c *RedisLoanCache) Delete(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, loanKey(id)).Err(); err != nil {
		logger.Log.Warn("loan cache delete failed", logger.Stringer("loan_id", id), logger.Error(err))
	}
}
