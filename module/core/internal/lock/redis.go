package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var _ Locker = (*Redis)(nil)

var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a token lock shared by every server instance. The TTL bounds how
// long a crashed holder can block an entity.
type Redis struct {
	rdb        *goredis.Client
	ttl        time.Duration
	retryDelay time.Duration
	prefix     string
}

func NewRedis(rdb *goredis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{rdb: rdb, ttl: ttl, retryDelay: 25 * time.Millisecond, prefix: "lock:entity:"}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	name := r.prefix + key
	token := uuid.NewString()
	delay := r.retryDelay

	for {
		ok, err := r.rdb.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		if delay < 500*time.Millisecond {
			delay *= 2
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// on failure the TTL frees the key
		if err := releaseScript.Run(ctx, r.rdb, []string{name}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			log.Printf("redis unlock %s: %v", key, err)
		}
	}, nil
}
