package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"creator_collab/internal/config"
	"creator_collab/internal/domain"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/jwt"
	"creator_collab/pkg/logger"
)

//go:generate mockgen -source=identity.go -destination=../mocks/mock_identity_gate.go -package=mocks

// IdentityGate turns a bearer credential into an identity. Every failure is
// unauthenticated except an unreachable remote service, which is transient.
type IdentityGate interface {
	Authenticate(ctx context.Context, credential string) (*domain.Identity, error)
}

func NewIdentityGate(cfg config.IdentityConfig, log logger.Logger) IdentityGate {
	if cfg.Mode == config.IdentityModeRemote {
		return NewRemoteIdentityGate(cfg.ServiceURL, cfg.ServiceTimeout, log)
	}
	return NewJWTIdentityGate(cfg.JWTSecret, cfg.JWTIssuer, log)
}

type jwtIdentityGate struct {
	secret string
	issuer string
	log    logger.Logger
}

// NewJWTIdentityGate verifies HMAC tokens signed by the auth service locally.
func NewJWTIdentityGate(secret, issuer string, log logger.Logger) IdentityGate {
	return &jwtIdentityGate{secret: secret, issuer: issuer, log: log}
}

func (g *jwtIdentityGate) Authenticate(_ context.Context, credential string) (*domain.Identity, error) {
	if credential == "" {
		return nil, apperrors.ErrUnauthorized
	}

	claims, err := jwt.ValidateToken(credential, g.secret, g.issuer)
	if err != nil {
		g.log.Debug("Token validation failed", "error", err)
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	if !domain.IsValidUserRole(claims.Role) {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidToken, "unknown role %q", claims.Role)
	}

	return &domain.Identity{
		UserID:   claims.UserID,
		Role:     claims.Role,
		Username: claims.Username,
	}, nil
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

type verifyTokenResponse struct {
	Valid       bool     `json:"valid"`
	UserID      *string  `json:"user_id,omitempty"`
	DisplayName *string  `json:"display_name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	ExpiresAt   *int64   `json:"expires_at,omitempty"`
}

type remoteIdentityGate struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

// NewRemoteIdentityGate asks the auth service's /auth/verify endpoint.
func NewRemoteIdentityGate(baseURL string, timeout time.Duration, log logger.Logger) IdentityGate {
	return &remoteIdentityGate{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (g *remoteIdentityGate) Authenticate(ctx context.Context, credential string) (*domain.Identity, error) {
	if credential == "" {
		return nil, apperrors.ErrUnauthorized
	}

	resp, err := g.verify(ctx, credential)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindUnauthenticated {
			return nil, err
		}
		g.log.Warn("Identity service unavailable", "error", err)
		return nil, apperrors.Transient(err)
	}

	if !resp.Valid || resp.UserID == nil || *resp.UserID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	if resp.ExpiresAt != nil && time.Unix(*resp.ExpiresAt, 0).Before(time.Now()) {
		return nil, apperrors.ErrTokenExpired
	}

	role, ok := lo.Find(resp.Roles, domain.IsValidUserRole)
	if !ok {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidToken, "no supported role in %v", resp.Roles)
	}

	return &domain.Identity{
		UserID:   *resp.UserID,
		Role:     role,
		Username: lo.FromPtr(resp.DisplayName),
	}, nil
}

func (g *remoteIdentityGate) verify(ctx context.Context, token string) (*verifyTokenResponse, error) {
	body, err := json.Marshal(verifyTokenRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/auth/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("identity service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var out verifyTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
