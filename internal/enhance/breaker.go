package enhance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrCooldown is returned while the circuit breaker is open. It classifies
// as transient, so batch runs back off and retry instead of failing pages
// outright.
var ErrCooldown = errors.New("enhancement service cooling down")

// Breaker wraps a Service with a redis-backed circuit breaker. Repeated
// transient failures open the circuit with an exponentially growing cooldown,
// so a degraded upstream trips fast instead of burning the retry budget of
// every page in a batch. Keeping the state in redis shares it across
// replicas.
type Breaker struct {
	inner       Service
	redis       *redis.Client
	model       string
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewBreaker wraps inner with breaker state stored under the given model key.
func NewBreaker(inner Service, redisURL, model string) (*Breaker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Breaker{
		inner:       inner,
		redis:       redis.NewClient(opt),
		model:       model,
		baseBackoff: 30 * time.Second,
		maxBackoff:  5 * time.Minute,
	}, nil
}

// Close releases the redis connection.
func (b *Breaker) Close() error { return b.redis.Close() }

func (b *Breaker) key() string { return fmt.Sprintf("cb:gemini:%s", b.model) }

func (b *Breaker) EnhancePage(ctx context.Context, req Request) (Result, error) {
	if b.isOpen(ctx) {
		return Result{}, &ServiceError{Err: ErrCooldown}
	}
	res, err := b.inner.EnhancePage(ctx, req)
	b.record(ctx, err)
	return res, err
}

func (b *Breaker) GeneratePage(ctx context.Context, req GenerateRequest) (Result, error) {
	if b.isOpen(ctx) {
		return Result{}, &ServiceError{Err: ErrCooldown}
	}
	res, err := b.inner.GeneratePage(ctx, req)
	b.record(ctx, err)
	return res, err
}

func (b *Breaker) record(ctx context.Context, err error) {
	if err == nil {
		b.reset(ctx)
		return
	}
	// Rejected input and timeouts say nothing about upstream health.
	if Classify(err) == FailTransient {
		b.open(ctx)
	}
}

func (b *Breaker) open(ctx context.Context) {
	key := b.key()
	failuresStr, _ := b.redis.HGet(ctx, key, "failures").Result()
	failures, _ := strconv.Atoi(failuresStr)
	failures++

	backoff := b.baseBackoff
	for i := 1; i < failures; i++ {
		backoff *= 2
		if backoff > b.maxBackoff {
			backoff = b.maxBackoff
			break
		}
	}
	retryAt := time.Now().Add(backoff).Unix()

	b.redis.HSet(ctx, key, map[string]interface{}{
		"state":    "open",
		"retry_at": retryAt,
		"failures": failures,
	})
	b.redis.Expire(ctx, key, 10*time.Minute)

	log.Warn().Str("model", b.model).Int("failures", failures).Dur("cooldown", backoff).Msg("circuit breaker opened")
}

func (b *Breaker) isOpen(ctx context.Context) bool {
	key := b.key()
	state, err := b.redis.HGet(ctx, key, "state").Result()
	if err != nil || state != "open" {
		return false
	}
	retryAtStr, _ := b.redis.HGet(ctx, key, "retry_at").Result()
	retryAt, _ := strconv.ParseInt(retryAtStr, 10, 64)
	if time.Now().Unix() >= retryAt {
		// Cooldown expired, allow a probe request through.
		b.redis.HSet(ctx, key, "state", "half_open")
		log.Info().Str("model", b.model).Msg("circuit breaker half-open")
		return false
	}
	return true
}

func (b *Breaker) reset(ctx context.Context) {
	key := b.key()
	state, _ := b.redis.HGet(ctx, key, "state").Result()
	if state == "" {
		return
	}
	b.redis.Del(ctx, key)
	log.Info().Str("model", b.model).Msg("circuit breaker closed")
}
