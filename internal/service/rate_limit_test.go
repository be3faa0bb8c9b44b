package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"creator_collab/internal/domain"
	"creator_collab/internal/mocks"
	"creator_collab/internal/service"
	"creator_collab/pkg/logger"
)

var sendRule = domain.RateLimitRule{Scope: domain.RateLimitScopeSend, Limit: 3, Window: time.Minute}

func TestRateLimitService_Allow(t *testing.T) {
	tests := []struct {
		name          string
		count         int64
		ttl           time.Duration
		wantAllowed   bool
		wantRemaining int
		wantRetry     time.Duration
	}{
		{name: "first hit", count: 1, wantAllowed: true, wantRemaining: 2},
		{name: "last allowed hit", count: 3, wantAllowed: true, wantRemaining: 0},
		{name: "over the limit", count: 4, ttl: 20 * time.Second, wantAllowed: false, wantRemaining: 0, wantRetry: 20 * time.Second},
		{name: "over the limit without ttl", count: 5, ttl: -1, wantAllowed: false, wantRemaining: 0, wantRetry: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)

			// Given
			repo := mocks.NewMockRateLimitRepository(ctrl)
			repo.EXPECT().Increment(gomock.Any(), "ratelimit:send:u-1", time.Minute).Return(tt.count, nil)
			if !tt.wantAllowed {
				repo.EXPECT().TTL(gomock.Any(), "ratelimit:send:u-1").Return(tt.ttl, nil)
			}
			svc := service.NewRateLimitService(repo, logger.NewNop())

			// When
			decision, err := svc.Allow(context.Background(), sendRule, "u-1")

			// Then
			req.NoError(err)
			req.Equal(tt.wantAllowed, decision.Allowed)
			req.Equal(tt.wantRemaining, decision.Remaining)
			req.Equal(tt.wantRetry, decision.RetryAfter)
			req.Equal(3, decision.Limit)
		})
	}
}

func TestRateLimitService_FailsOpen(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	// Given
	repo := mocks.NewMockRateLimitRepository(ctrl)
	repo.EXPECT().Increment(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), errors.New("redis down"))
	svc := service.NewRateLimitService(repo, logger.NewNop())

	// When
	decision, err := svc.Allow(context.Background(), sendRule, "u-1")

	// Then
	req.Error(err)
	req.True(decision.Allowed)
}

func TestRateLimitService_DisabledWithoutStore(t *testing.T) {
	req := require.New(t)

	svc := service.NewRateLimitService(nil, logger.NewNop())

	decision, err := svc.Allow(context.Background(), sendRule, "u-1")

	req.NoError(err)
	req.True(decision.Allowed)
}

func TestRateLimitService_DisabledRuleSkipsStore(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	// Given
	repo := mocks.NewMockRateLimitRepository(ctrl)
	svc := service.NewRateLimitService(repo, logger.NewNop())

	// When
	decision, err := svc.Allow(context.Background(), domain.RateLimitRule{Scope: "send"}, "u-1")

	// Then
	req.NoError(err)
	req.True(decision.Allowed)
}
