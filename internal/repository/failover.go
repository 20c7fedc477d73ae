package repository

import (
	"context"
	"sync/atomic"
	"time"

	"peregovorka/internal/domain"

	"github.com/rs/zerolog"
)

const defaultRetryAfter = time.Minute

// FailoverRateLimiter uses the primary limiter until it errors, then the fallback,
// retrying the primary once per retry interval.
type FailoverRateLimiter struct {
	primary    domain.RateLimiter
	fallback   domain.RateLimiter
	logger     *zerolog.Logger
	retryAfter time.Duration
	isDown     atomic.Bool
	downSince  atomic.Int64
	now        func() time.Time
}

var _ domain.RateLimiter = (*FailoverRateLimiter)(nil)

func NewFailoverRateLimiter(primary, fallback domain.RateLimiter, logger *zerolog.Logger) *FailoverRateLimiter {
	return &FailoverRateLimiter{
		primary:    primary,
		fallback:   fallback,
		logger:     logger,
		retryAfter: defaultRetryAfter,
		now:        time.Now,
	}
}

func (r *FailoverRateLimiter) Allow(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.shouldTryPrimary() {
		allowed, err := r.primary.Allow(ctx, userID, limit, window)
		if err == nil {
			if r.isDown.CompareAndSwap(true, false) {
				r.logger.Info().Msg("Primary rate limiter recovered")
			}
			return allowed, nil
		}
		if !r.isDown.Swap(true) {
			r.logger.Error().Err(err).Msg("Primary rate limiter failed, falling back to memory")
		}
		r.downSince.Store(r.now().UnixNano())
	}

	return r.fallback.Allow(ctx, userID, limit, window)
}

// Degraded reports whether requests are currently served by the fallback.
func (r *FailoverRateLimiter) Degraded() bool {
	return r.isDown.Load()
}

func (r *FailoverRateLimiter) shouldTryPrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.downSince.Load())) >= r.retryAfter
}
