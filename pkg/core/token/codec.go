// Package token issues and verifies the signed link tokens. It is the only
// place the signing secret is used.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
)

// linkClaims is the JWT payload of a link token.
type linkClaims struct {
	CallbackURL string `json:"callback_url"`
	Seconds     int    `json:"seconds"`
	RedirectURL string `json:"redirect_url"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret   []byte
	method   jwt.SigningMethod
	lifetime time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

type Option func(*Codec)

// WithClock overrides the time source used for iat/exp and verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithLifetime overrides domain.TokenLifetime.
func WithLifetime(d time.Duration) Option {
	return func(c *Codec) {
		if d > 0 {
			c.lifetime = d
		}
	}
}

// NewCodec creates a codec for one of HS256, HS384 or HS512.
func NewCodec(secret []byte, algorithm string, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	var method jwt.SigningMethod
	switch strings.ToUpper(algorithm) {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("token: unsupported algorithm %q", algorithm)
	}

	c := &Codec{
		secret:   secret,
		method:   method,
		lifetime: domain.TokenLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// Issue signs a token carrying the callback, the redirect and the delay.
func (c *Codec) Issue(callbackURL, redirectURL string, seconds int) (string, error) {
	if !domain.ValidDelay(seconds) {
		return "", fmt.Errorf("%w: seconds must be between %d and %d, got %d",
			domain.ErrInvalidParameter, domain.MinDelaySeconds, domain.MaxDelaySeconds, seconds)
	}
	if callbackURL == "" || redirectURL == "" {
		return "", fmt.Errorf("%w: callback and redirect URLs are required", domain.ErrInvalidParameter)
	}

	now := c.now()
	claims := linkClaims{
		CallbackURL: callbackURL,
		Seconds:     seconds,
		RedirectURL: redirectURL,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the embedded fields.
// Expired tokens yield domain.ErrExpired; everything else domain.ErrTampered.
func (c *Codec) Verify(tokenString string) (domain.LinkToken, error) {
	claims := &linkClaims{}
	_, err := c.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		// exp is only checked after the signature, so an expired error
		// implies an authentic token.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.LinkToken{}, domain.ErrExpired
		}
		return domain.LinkToken{}, fmt.Errorf("%w: %v", domain.ErrTampered, err)
	}

	if claims.CallbackURL == "" || claims.RedirectURL == "" || !domain.ValidDelay(claims.Seconds) {
		return domain.LinkToken{}, fmt.Errorf("%w: incomplete link parameters", domain.ErrTampered)
	}

	out := domain.LinkToken{
		CallbackURL: claims.CallbackURL,
		RedirectURL: claims.RedirectURL,
		Delay:       time.Duration(claims.Seconds) * time.Second,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
