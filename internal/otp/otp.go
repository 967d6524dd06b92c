// Package otp 在 redis 中保存一次性验证码
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidCode = errors.New("invalid or expired code")

type Store interface {
	Save(ctx context.Context, purpose, subject, code string, ttl time.Duration) error
	// Consume 校验验证码，成功后立即删除，使其只能使用一次
	Consume(ctx context.Context, purpose, subject, code string) error
}

// consumeScript 在一次调用内完成比较、删除和失败计数，并发请求不会重复使用同一个验证码。
// 失败次数达到上限后验证码作废，计数键的过期时间与验证码剩余有效期一致
var consumeScript = redis.NewScript(`
local stored = redis.call('GET', KEYS[1])
if not stored then
	return 0
end
if stored == ARGV[1] then
	redis.call('DEL', KEYS[1], KEYS[2])
	return 1
end
local attempts = redis.call('INCR', KEYS[2])
if attempts == 1 then
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[2], ttl)
	end
end
if attempts >= tonumber(ARGV[2]) then
	redis.call('DEL', KEYS[1], KEYS[2])
end
return 0
`)

type RedisStore struct {
	client      *redis.Client
	timeout     time.Duration
	maxAttempts int
}

func NewRedisStore(client *redis.Client, timeout time.Duration, maxAttempts int) *RedisStore {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RedisStore{client: client, timeout: timeout, maxAttempts: maxAttempts}
}

func key(purpose, subject string) string {
	return fmt.Sprintf("otp_%s_%s", subject, purpose)
}

func attemptsKey(purpose, subject string) string {
	return fmt.Sprintf("otp_attempts_%s_%s", subject, purpose)
}

// Save 写入新验证码并清空之前的失败计数
func (s *RedisStore) Save(ctx context.Context, purpose, subject, code string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key(purpose, subject), code, ttl)
		pipe.Del(ctx, attemptsKey(purpose, subject))
		return nil
	})
	return err
}

func (s *RedisStore) Consume(ctx context.Context, purpose, subject, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := consumeScript.Run(ctx, s.client,
		[]string{key(purpose, subject), attemptsKey(purpose, subject)},
		code, s.maxAttempts,
	).Int()
	if err != nil {
		return err
	}
	if ok != 1 {
		return ErrInvalidCode
	}
	return nil
}
