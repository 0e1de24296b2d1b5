package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/questlog/domain"
	"github.com/fastygo/questlog/usecase"
)

// ErrLockTimeout is returned when a lock could not be acquired in time.
var ErrLockTimeout = domain.NewError(domain.ErrCodeConflict, "another update for this user is in progress")

var unlockScript = redislib.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a token lock (SET NX PX) shared by every instance pointing at the
// same Redis. Release only deletes the key if it still holds our token.
type Locker struct {
	client  *redislib.Client
	prefix  string
	ttl     time.Duration
	wait    time.Duration
	backoff time.Duration
	logger  *zap.Logger
}

// NewLocker creates a Redis-backed locker. ttl bounds how long a crashed
// holder can block a user; wait bounds acquisition.
func NewLocker(client *redislib.Client, ttl, wait time.Duration, logger *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{
		client:  client,
		prefix:  "questlog:lock:",
		ttl:     ttl,
		wait:    wait,
		backoff: 25 * time.Millisecond,
		logger:  logger,
	}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := l.key(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, ErrLockTimeout
			}
			return nil, domain.WrapError(domain.ErrCodeStoreUnavailable, "lock backend unavailable", err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		timer := time.NewTimer(l.backoff)
		select {
		case <-timer.C:
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrLockTimeout
		}
	}
}

func (l *Locker) releaser(redisKey, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release lock", zap.String("key", redisKey), zap.Error(err))
		}
	}
}

func (l *Locker) key(id string) string {
	return fmt.Sprintf("%s%s", l.prefix, id)
}

var _ usecase.Locker = (*Locker)(nil)
