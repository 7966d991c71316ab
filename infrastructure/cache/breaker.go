package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerCache decorates a Cache with a circuit breaker so a dead backend
// fails fast with ErrUnavailable instead of stalling every request on
// connection timeouts. Absent keys are not failures; only transport errors
// trip the breaker.
type BreakerCache struct {
	inner   Cache
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewBreakerCache wraps the given cache with a circuit breaker
func NewBreakerCache(inner Cache, logger *zap.Logger) *BreakerCache {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Cache circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerCache{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

type getResult struct {
	value []byte
	found bool
}

// Get retrieves a value through the breaker
func (c *BreakerCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		value, found, err := c.inner.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return getResult{value: value, found: found}, nil
	})
	if err != nil {
		return nil, false, c.wrapError(err)
	}

	res := result.(getResult)
	return res.value, res.found, nil
}

// Set stores a value through the breaker
func (c *BreakerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Set(ctx, key, value, ttl)
	})
	return c.wrapError(err)
}

// Delete removes a value through the breaker
func (c *BreakerCache) Delete(ctx context.Context, key string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Delete(ctx, key)
	})
	return c.wrapError(err)
}

// wrapError normalizes breaker rejections to ErrUnavailable
func (c *BreakerCache) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
