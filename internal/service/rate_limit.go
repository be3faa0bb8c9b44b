package service

import (
	"context"
	"time"

	"creator_collab/internal/domain"
	"creator_collab/internal/repository"
	"creator_collab/pkg/logger"
)

type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

//go:generate mockgen -source=rate_limit.go -destination=../mocks/mock_rate_limit_service.go -package=mocks

type RateLimitService interface {
	// Allow counts one hit for subject. A counter store error is returned
	// together with an allowing decision.
	Allow(ctx context.Context, rule domain.RateLimitRule, subject string) (*RateLimitDecision, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

// NewRateLimitService accepts a nil repository, in which case every hit is
// allowed.
func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, rule domain.RateLimitRule, subject string) (*RateLimitDecision, error) {
	open := &RateLimitDecision{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit}
	if s.rateLimitRepo == nil || !rule.Enabled() {
		return open, nil
	}

	key := rule.Key(subject)
	count, err := s.rateLimitRepo.Increment(ctx, key, rule.Window)
	if err != nil {
		s.log.Warn("Rate limit counter unavailable", "key", key, "error", err)
		return open, err
	}

	decision := &RateLimitDecision{
		Allowed:   count <= int64(rule.Limit),
		Limit:     rule.Limit,
		Remaining: max(rule.Limit-int(count), 0),
	}
	if !decision.Allowed {
		ttl, err := s.rateLimitRepo.TTL(ctx, key)
		if err != nil || ttl <= 0 {
			ttl = rule.Window
		}
		decision.RetryAfter = ttl
	}
	return decision, nil
}
