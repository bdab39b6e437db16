package token

// Package token encodes and decodes the signed bearer credential carried by
// the access_token cookie. The credential is a compact HS256 JWT whose
// subject is the local user id; verification is stateless, revocation is
// handled separately by the credential record store.

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failure modes. Callers branch on these with errors.Is.
var (
	// ErrMalformed indicates the value could not be parsed as a token of the
	// expected scheme.
	ErrMalformed = errors.New("credential is malformed")
	// ErrExpired indicates the embedded expiry has passed.
	ErrExpired = errors.New("credential is expired")
	// ErrBadSignature indicates the signature check failed.
	ErrBadSignature = errors.New("credential signature is invalid")
)

const signingMethod = "HS256"

// Codec issues and verifies signed, time-bounded bearer credentials.
// It is safe for concurrent use; the key and TTL are fixed at construction.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// CodecConfig groups construction parameters for a Codec.
type CodecConfig struct {
	// SigningSecret is the symmetric HS256 key.
	SigningSecret string
	// TTL is the credential lifetime from issuance.
	TTL time.Duration
	// Now overrides the clock; nil means time.Now. Tests use this to
	// exercise expiry without sleeping.
	Now func() time.Time
}

// NewCodec constructs a Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.SigningSecret == "" {
		return nil, errors.New("signing secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{
		secret: []byte(cfg.SigningSecret),
		ttl:    cfg.TTL,
		now:    now,
	}, nil
}

// TTL returns the configured credential lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue produces a signed credential for the given subject id together with
// its absolute expiry. It is a pure function of subject, key, and clock.
func (c *Codec) Issue(subjectID string) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, errors.New("subject id is required")
	}

	issuedAt := c.now().UTC()
	expiresAt := issuedAt.Add(c.ttl)
	// The jti keeps concurrently issued credentials for one subject distinct;
	// iat and exp alone have second granularity.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	})

	value, err := tok.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign credential: %w", err)
	}
	return value, expiresAt, nil
}

// Verify decodes the credential, checks signature and expiry, and returns the
// embedded subject id. Failures are one of ErrMalformed, ErrExpired, or
// ErrBadSignature.
func (c *Codec) Verify(value string) (string, error) {
	if value == "" {
		return "", ErrMalformed
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims,
		func(_ *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{signingMethod}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", mapJWTError(err)
	}

	if claims.Subject == "" {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}

// mapJWTError translates jwt library errors into the codec's failure modes.
// The library verifies the signature before validating claims, so a tampered
// token reports ErrBadSignature even when it is also past its expiry.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenUnverifiable), errors.Is(err, jwt.ErrTokenInvalidClaims):
		return ErrMalformed
	default:
		return ErrMalformed
	}
}
