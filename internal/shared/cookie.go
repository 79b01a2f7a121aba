package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const cookieIssuer = "tree-console"

// ErrInvalidCookie indicates a session cookie that failed verification.
var ErrInvalidCookie = errors.New("invalid session cookie")

// CookieSigner seals session ids into HS256 tokens.
type CookieSigner struct {
	key    jwk.Key
	expiry time.Duration
}

// NewCookieSigner builds a signer from a shared secret.
func NewCookieSigner(secret string, expiry time.Duration) (*CookieSigner, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("session secret must be at least 16 bytes")
	}
	key, err := jwk.FromRaw([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("create jwk: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.HS256); err != nil {
		return nil, fmt.Errorf("set algorithm: %w", err)
	}
	return &CookieSigner{key: key, expiry: expiry}, nil
}

// Sign returns the cookie value for a session id.
func (s *CookieSigner) Sign(sessionID string) (string, error) {
	now := time.Now()
	builder := jwt.NewBuilder().
		Issuer(cookieIssuer).
		Subject(sessionID).
		IssuedAt(now)
	if s.expiry > 0 {
		builder = builder.Expiration(now.Add(s.expiry))
	}
	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// Verify returns the session id sealed in a cookie value.
func (s *CookieSigner) Verify(value string) (string, error) {
	token, err := jwt.Parse([]byte(value), jwt.WithKey(jwa.HS256, s.key), jwt.WithIssuer(cookieIssuer), jwt.WithValidate(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	if token.Subject() == "" {
		return "", ErrInvalidCookie
	}
	return token.Subject(), nil
}
