// Package auth validates the bearer tokens that guard the admin API.
//
// Tokens are HS256 JWTs issued out of band by operators. Each carries the
// operator in the subject and a role claim; catalog and feature flag
// writes require RoleAdmin.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles.
const (
	RoleAdmin = "admin"
	RoleRead  = "read"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 12 * time.Hour

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token has expired")
)

// Claims are the claims carried by admin access tokens.
type Claims struct {
	jwt.RegisteredClaims

	Role string `json:"role"`
}

// HasRole reports whether the token grants role. Admin implies every role.
func (c *Claims) HasRole(role string) bool {
	return c.Role == role || c.Role == RoleAdmin
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	// SigningKey is the HMAC secret.
	SigningKey string

	// Issuer and Audience are required to match on validation.
	Issuer   string
	Audience string

	// TTL is the lifetime of issued tokens. Default: DefaultTokenTTL
	TTL time.Duration
}

// JWTService issues and validates tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) *JWTService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		ttl:        ttl,
		now:        time.Now,
	}
}

// IssueToken signs a token for subject with role.
func (s *JWTService) IssueToken(subject, role string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        tokenID(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken checks signature, issuer, audience and expiry and
// returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func tokenID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
