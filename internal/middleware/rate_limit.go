package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"creator_collab/internal/domain"
	"creator_collab/internal/service"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	rule             domain.RateLimitRule
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, rule domain.RateLimitRule, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		rule:             rule,
		log:              log,
	}
}

// Limit counts requests per authenticated user, or per client IP before
// authentication. A counter store outage lets requests through.
func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.rule.Enabled() {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if identity, ok := IdentityFrom(c); ok {
			subject = identity.UserID
		}

		decision, err := m.rateLimitService.Allow(c.Request.Context(), m.rule, subject)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			abortWithError(c, apperrors.WithDetail(apperrors.ErrRateLimited, "retry in %ds", retryAfter))
			return
		}

		c.Next()
	}
}
