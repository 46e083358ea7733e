package auth

import (
	"testing"
	"time"

	"github.com/erp/integration-hub/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestTokenService() *TokenService {
	return NewTokenService(config.JWTConfig{
		Secret:          testSecret,
		Issuer:          "integration-hub",
		TokenExpiration: 15 * time.Minute,
	})
}

func TestNewTokenService_DefaultExpiration(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: testSecret})
	assert.Equal(t, time.Hour, svc.expiration)
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestTokenService()

	issued, err := svc.Issue("ops-1", "alice", PermissionAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", issued.TokenType)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), issued.ExpiresAt, 5*time.Second)

	claims, err := svc.Validate(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "ops-1", claims.Subject)
	assert.Equal(t, "alice", claims.Actor())
	assert.Equal(t, "integration-hub", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.HasPermission(PermissionAdmin))
}

func TestIssue_Errors(t *testing.T) {
	_, err := NewTokenService(config.JWTConfig{}).Issue("ops-1", "")
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = newTestTokenService().Issue("", "alice")
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestValidate_Failures(t *testing.T) {
	svc := newTestTokenService()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	sign := func(t *testing.T, method jwt.SigningMethod, key any, claims *Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	claimsAt := func(issuer string, issued time.Time, ttl time.Duration) *Claims {
		return &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "ops-1",
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		}}
	}

	svc.now = func() time.Time { return base }

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("another-secret-key-of-32-characters"), claimsAt("integration-hub", base, time.Hour)), ErrInvalidToken},
		{"none algorithm", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claimsAt("integration-hub", base, time.Hour)), ErrInvalidToken},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsAt("integration-hub", base.Add(-2*time.Hour), time.Hour)), ErrExpiredToken},
		{"not yet valid", sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsAt("integration-hub", base.Add(time.Hour), time.Hour)), ErrTokenNotYetValid},
		{"foreign issuer", sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsAt("someone-else", base, time.Hour)), ErrInvalidClaims},
		{"missing subject", sign(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "integration-hub",
			ExpiresAt: jwt.NewNumericDate(base.Add(time.Hour)),
		}}), ErrMissingSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_MissingSecret(t *testing.T) {
	_, err := NewTokenService(config.JWTConfig{}).Validate("x.y.z")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestClaims_Permissions(t *testing.T) {
	claims := &Claims{Permissions: []string{"integration:read", PermissionAdmin}}

	assert.True(t, claims.HasPermission(PermissionAdmin))
	assert.False(t, claims.HasPermission("integration:write"))
	assert.True(t, claims.HasAnyPermission("integration:write", "integration:read"))
	assert.False(t, claims.HasAnyPermission("integration:write"))
	assert.False(t, (&Claims{}).HasAnyPermission())
}

func TestClaims_ActorFallsBackToSubject(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ops-1"}}
	assert.Equal(t, "ops-1", claims.Actor())
}
