// Package token issues and verifies the signed bearer credentials handed to
// mobile clients in place of a session cookie.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("token: invalid token")

// Config carries the signing parameters for bearer credentials.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Identity is the asserted subject of an issued token.
type Identity struct {
	UserID      int64
	Email       string
	DisplayName string
}

// Claims represents the JWT claim set used across the service.
type Claims struct {
	Email       string   `json:"email"`
	DisplayName string   `json:"name,omitempty"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject of the claims.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token: parse subject: %w", err)
	}
	return id, nil
}

// Issuer signs and verifies bearer tokens with a symmetric secret.
type Issuer struct {
	cfg    Config
	secret []byte
}

// NewIssuer constructs an Issuer from configuration.
func NewIssuer(cfg Config) (*Issuer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token: signing secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token: ttl must be greater than zero")
	}
	return &Issuer{cfg: cfg, secret: []byte(cfg.Secret)}, nil
}

// Issue signs a JWT for the given identity and permission set using HS256.
func (i *Issuer) Issue(identity Identity, permissions []string) (string, error) {
	if identity.UserID <= 0 {
		return "", errors.New("token: user id is required")
	}
	now := time.Now().UTC()
	claims := Claims{
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Permissions: dedupe(permissions),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			Subject:   strconv.FormatInt(identity.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry, returning the claims.
//
// There is no revocation list: a token stays valid until its natural expiry
// regardless of account changes made after it was issued.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.cfg.Issuer), jwt.WithAudience(i.cfg.Audience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	claims.Permissions = dedupe(claims.Permissions)
	return claims, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
