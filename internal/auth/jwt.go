// Package auth validates operator API tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// Errors returned by the authenticator.
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrNoSigningKey  = errors.New("jwt signing key is not configured")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Claims are the claims carried by operator tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
}

// Config configures the Authenticator.
type Config struct {
	SecretKey string
	Issuer    string
	TokenTTL  time.Duration
}

// Authenticator issues and validates HS256 operator tokens.
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(cfg Config) *Authenticator {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Authenticator{
		secret: []byte(cfg.SecretKey),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
}

// GenerateToken signs a token for userID with role.
func (a *Authenticator) GenerateToken(userID string, role domain.Role) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrNoSigningKey
	}
	if !role.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidClaims, role)
	}

	now := a.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken implements httputil.TokenValidator.
func (a *Authenticator) ValidateToken(_ context.Context, tokenString string) (string, domain.Role, error) {
	if len(a.secret) == 0 {
		return "", "", ErrNoSigningKey
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || !claims.Role.IsValid() {
		return "", "", ErrInvalidClaims
	}
	return claims.Subject, claims.Role, nil
}
