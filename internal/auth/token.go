// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/pkg/errutil"
)

// DefaultTokenTTL is the session token lifetime when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenType is the scheme clients send tokens with.
const TokenType = "bearer"

var signingMethod = jwt.SigningMethodHS256

// TokenService issues and validates stateless session tokens. Tokens are
// HS256 JWTs with sub, iat, exp and jti claims. Nothing is stored server
// side; rotating the secret invalidates every outstanding token.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. A zero ttl uses DefaultTokenTTL.
func NewTokenService(secret []byte, ttl time.Duration) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, oops.Code("AUTH_TOKEN_CONFIG_INVALID").Errorf("token secret is required")
	}
	if ttl < 0 {
		return nil, oops.Code("AUTH_TOKEN_CONFIG_INVALID").With("ttl", ttl).Errorf("token ttl must be positive")
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenService{secret: key, ttl: ttl}, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// sessionClaims carries the exact expiry next to the whole-second exp claim,
// so a token lives exactly TTL regardless of sub-second issue times.
type sessionClaims struct {
	jwt.RegisteredClaims
	ExpiresAtNano int64 `json:"exp_ns"`
}

// Issue signs a token for playerID valid from issuedAt until issuedAt+TTL.
// iat is rounded down and exp rounded up to whole seconds; exp_ns holds the
// exact expiry.
func (s *TokenService) Issue(playerID int64, issuedAt time.Time) (string, error) {
	expiresAt := issuedAt.Add(s.ttl)
	expCeil := expiresAt.Truncate(time.Second)
	if expCeil.Before(expiresAt) {
		expCeil = expCeil.Add(time.Second)
	}
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(playerID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt.Truncate(time.Second)),
			ExpiresAt: jwt.NewNumericDate(expCeil),
			ID:        ulid.Make().String(),
		},
		ExpiresAtNano: expiresAt.UnixNano(),
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").With("player_id", playerID).Wrap(err)
	}
	return signed, nil
}

// Validate checks the signature, then expiry at now, and returns the player
// ID. Every failure wraps errutil.ErrUnauthenticated; the reason is kept in
// the error context for logs only.
func (s *TokenService) Validate(token string, now time.Time) (int64, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
	)

	claims := &sessionClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return 0, unauthenticated(tokenFailureReason(err), err)
	}
	if !parsed.Valid {
		return 0, unauthenticated("invalid", nil)
	}
	if claims.ExpiresAtNano <= 0 {
		return 0, unauthenticated("malformed", nil)
	}
	if !now.Before(time.Unix(0, claims.ExpiresAtNano)) {
		return 0, unauthenticated("expired", nil)
	}

	playerID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || playerID <= 0 {
		return 0, unauthenticated("bad_subject", err)
	}
	return playerID, nil
}

func tokenFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "not_yet_issued"
	default:
		return "invalid"
	}
}

func unauthenticated(reason string, cause error) error {
	b := oops.Code("AUTH_TOKEN_INVALID").With("reason", reason)
	if cause != nil {
		b = b.With("cause", cause.Error())
	}
	return b.Wrap(errutil.Public(errutil.ErrUnauthenticated, "could not validate credentials"))
}
