package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(now time.Time) *Authenticator {
	a := NewAuthenticator(Config{SecretKey: "test-secret", Issuer: "monitorsystem", TokenTTL: time.Hour})
	a.now = func() time.Time { return now }
	return a
}

func TestAuthenticator_RoundTrip(t *testing.T) {
	now := time.Now()
	a := newTestAuthenticator(now)

	token, err := a.GenerateToken("user-1", domain.RoleOperator)
	require.NoError(t, err)

	userID, role, err := a.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, domain.RoleOperator, role)
}

func TestAuthenticator_Rejects(t *testing.T) {
	now := time.Now()
	a := newTestAuthenticator(now)

	valid, err := a.GenerateToken("user-1", domain.RoleAdmin)
	require.NoError(t, err)

	expired, err := newTestAuthenticator(now.Add(-2*time.Hour)).GenerateToken("user-1", domain.RoleAdmin)
	require.NoError(t, err)

	otherKey := NewAuthenticator(Config{SecretKey: "other", Issuer: "monitorsystem"})
	otherKey.now = func() time.Time { return now }
	foreign, err := otherKey.GenerateToken("user-1", domain.RoleAdmin)
	require.NoError(t, err)

	otherIssuer := NewAuthenticator(Config{SecretKey: "test-secret", Issuer: "someone-else"})
	otherIssuer.now = func() time.Time { return now }
	wrongIssuer, err := otherIssuer.GenerateToken("user-1", domain.RoleAdmin)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "monitorsystem",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Role: domain.RoleAdmin,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "monitorsystem",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Role: "superuser",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "tampered", token: valid + "x"},
		{name: "expired", token: expired},
		{name: "foreign key", token: foreign},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "none algorithm", token: noneAlg},
		{name: "unknown role", token: badRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := a.ValidateToken(context.Background(), tt.token)
			assert.Error(t, err)
		})
	}
}

func TestAuthenticator_NoSecret(t *testing.T) {
	a := NewAuthenticator(Config{})

	_, err := a.GenerateToken("user-1", domain.RoleViewer)
	assert.ErrorIs(t, err, ErrNoSigningKey)

	_, _, err = a.ValidateToken(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNoSigningKey)
}

func TestAuthenticator_UnknownRole(t *testing.T) {
	a := newTestAuthenticator(time.Now())
	_, err := a.GenerateToken("user-1", "root")
	assert.ErrorIs(t, err, ErrInvalidClaims)
}
