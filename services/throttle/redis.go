package throttlesvc

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
)

const keyPrefix = "academia:login-failures:"

// RedisThrottle keeps failed login counters in redis so every API instance shares them.
type RedisThrottle struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

var _ account.LoginThrottle = (*RedisThrottle)(nil) // interface compliance check

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisThrottle(client *redis.Client, conf *core.Config) *RedisThrottle {
	vala.BeginValidation().Validate(
		vala.IsNotNil(client, "client"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &RedisThrottle{
		client:      client,
		maxAttempts: conf.Auth.MaxLoginAttempts,
		window:      conf.Auth.LoginAttemptWindow,
	}
}

func (t *RedisThrottle) Blocked(ctx context.Context, key string) (bool, error) {
	if t.maxAttempts <= 0 {
		return false, nil
	}
	count, err := t.client.Get(ctx, keyPrefix+key).Int()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, errors.Wrap(err, "reading failure counter")
	}
	return count >= t.maxAttempts, nil
}

// Failed counts one more failure. The window starts with the first failure.
func (t *RedisThrottle) Failed(ctx context.Context, key string) error {
	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, keyPrefix+key)
	ttl := pipe.TTL(ctx, keyPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "incrementing failure counter")
	}
	if incr.Val() == 1 || ttl.Val() < 0 {
		if err := t.client.Expire(ctx, keyPrefix+key, t.window).Err(); err != nil {
			return errors.Wrap(err, "setting failure counter expiry")
		}
	}
	return nil
}

func (t *RedisThrottle) Reset(ctx context.Context, key string) error {
	return errors.Wrap(t.client.Del(ctx, keyPrefix+key).Err(), "deleting failure counter")
}
