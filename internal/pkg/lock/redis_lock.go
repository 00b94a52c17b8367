package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shg-finance/internal/pkg/apperrors"
	"shg-finance/internal/pkg/config"
	"shg-finance/internal/pkg/consts"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// newToken is a variable so tests can predict lock ownership tokens.
var newToken = uuid.NewString

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func(ctx context.Context)

// RedisLocker serializes mutations of one loan or one group across service instances.
type RedisLocker struct {
	client        redis.UniversalClient
	ttl           time.Duration
	waitTimeout   time.Duration
	retryInterval time.Duration
}

func NewRedisLocker(client redis.UniversalClient, cfg config.LockConfig) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           cfg.TTL,
		waitTimeout:   cfg.WaitTimeout,
		retryInterval: cfg.RetryInterval,
	}
}

func LoanKey(loanID string) string {
	return consts.LoanLockPrefix + loanID
}

func GroupKey(groupID string) string {
	return consts.GroupLockPrefix + groupID
}

// Acquire blocks until key is held or the wait timeout elapses, in which case a Conflict error is returned.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	token := newToken()
	deadline := time.Now().Add(l.waitTimeout)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			logger.CtxError(ctx, log_messages.LockAcquireFailed, err, slog.String("key", key))
			return nil, apperrors.Infrastructure(err, "acquire lock %s", key)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}

		if !time.Now().Add(l.retryInterval).Before(deadline) {
			logger.CtxWarn(ctx, log_messages.LockAcquireFailed, slog.String("key", key), slog.Duration("waited", l.waitTimeout))
			return nil, apperrors.Conflict("%s is being modified by another request, retry shortly", key)
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.Infrastructure(ctx.Err(), "acquire lock %s", key)
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *RedisLocker) unlockFunc(key, token string) Unlock {
	released := false
	return func(ctx context.Context) {
		if released {
			return
		}
		released = true

		// Release even when the request context has already been cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			logger.CtxError(ctx, log_messages.LockReleaseFailed, err, slog.String("key", key))
		}
	}
}
