package service

import (
	"context"
	"time"

	"peregovorka/internal/domain"

	"github.com/rs/zerolog"
)

// MessageLimiter throttles bot users. Admins are never throttled and a broken
// limiter lets messages through.
type MessageLimiter struct {
	limiter domain.RateLimiter
	admins  interface {
		IsAdmin(ctx context.Context, userID int64) (bool, error)
	}
	limit  int
	window time.Duration
	logger *zerolog.Logger
}

func NewMessageLimiter(
	limiter domain.RateLimiter,
	admins interface {
		IsAdmin(ctx context.Context, userID int64) (bool, error)
	},
	limit int,
	window time.Duration,
	logger *zerolog.Logger,
) *MessageLimiter {
	return &MessageLimiter{
		limiter: limiter,
		admins:  admins,
		limit:   limit,
		window:  window,
		logger:  logger,
	}
}

func (s *MessageLimiter) Allow(ctx context.Context, userID int64) bool {
	if s.limit <= 0 || s.window <= 0 {
		return true
	}

	if isAdmin, err := s.admins.IsAdmin(ctx, userID); err == nil && isAdmin {
		return true
	}

	allowed, err := s.limiter.Allow(ctx, userID, s.limit, s.window)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to check rate limit")
		return true
	}
	if !allowed {
		s.logger.Debug().Int64("user_id", userID).Msg("rate limit exceeded")
	}
	return allowed
}
