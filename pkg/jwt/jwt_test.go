package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestValidateToken_RoundTrip(t *testing.T) {
	req := require.New(t)

	// Given
	token, err := GenerateAccessToken("user-1", "designer", "ana", testSecret, "auth", time.Hour)
	req.NoError(err)

	// When
	claims, err := ValidateToken(token, testSecret, "auth")

	// Then
	req.NoError(err)
	req.Equal("user-1", claims.UserID)
	req.Equal("designer", claims.Role)
	req.Equal("ana", claims.Username)
}

func TestValidateToken_Rejections(t *testing.T) {
	valid, err := GenerateAccessToken("user-1", "designer", "", testSecret, "auth", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateAccessToken("user-1", "designer", "", testSecret, "auth", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		secret  string
		issuer  string
		wantErr error
	}{
		{name: "expired", token: expired, secret: testSecret, issuer: "auth", wantErr: ErrTokenExpired},
		{name: "wrong secret", token: valid, secret: "another-secret-another-secret-xx", issuer: "auth", wantErr: ErrInvalidToken},
		{name: "wrong issuer", token: valid, secret: testSecret, issuer: "someone-else", wantErr: ErrInvalidToken},
		{name: "garbage", token: "not.a.token", secret: testSecret, wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.token, tt.secret, tt.issuer)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
