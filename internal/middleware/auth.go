package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"creator_collab/internal/domain"
	"creator_collab/internal/service"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

const identityKey = "identity"

type AuthMiddleware struct {
	identity service.IdentityGate
	log      logger.Logger
}

func NewAuthMiddleware(identity service.IdentityGate, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		identity: identity,
		log:      log,
	}
}

// RequireAuth resolves the bearer token through the identity gate and stores
// the identity on the context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, err)
			return
		}

		identity, err := m.identity.Authenticate(c.Request.Context(), token)
		if err != nil {
			m.log.Debug("Authentication failed", "error", err, "path", c.FullPath())
			abortWithError(c, err)
			return
		}

		SetIdentity(c, *identity)
		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.WithDetail(apperrors.ErrUnauthorized, "Authorization header required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperrors.WithDetail(apperrors.ErrUnauthorized, "invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

func SetIdentity(c *gin.Context, identity domain.Identity) {
	c.Set(identityKey, identity)
	c.Set("user_id", identity.UserID)
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := v.(domain.Identity)
	return identity, ok
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperrors.HTTPStatusFromError(err), apperrors.NewAPIError(err))
}
