// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geoelevate/geoelevate/pkg/errutil"
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(playerID int64, issuedAt time.Time) (string, error)
	TTL() time.Duration
}

// LoginThrottle counts failed logins per username. Implementations may be
// nil-safe no-ops; errors are logged and never block a login.
type LoginThrottle interface {
	// Allow reports whether another attempt for key is permitted.
	Allow(ctx context.Context, key string) (bool, error)
	// RecordFailure counts a failed attempt for key.
	RecordFailure(ctx context.Context, key string) error
	// Reset clears the failure count for key.
	Reset(ctx context.Context, key string) error
}

// LoginRecorder observes login outcomes, typically for metrics.
type LoginRecorder interface {
	RecordLogin(result string)
}

// Login results passed to LoginRecorder.
const (
	LoginResultSuccess     = "success"
	LoginResultInvalid     = "invalid_credentials"
	LoginResultInactive    = "inactive"
	LoginResultRateLimited = "rate_limited"
	LoginResultError       = "error"
)

// Session is the result of a successful register or login.
type Session struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
	Player    *Player
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithLogger sets the logger for best-effort failures.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithThrottle enables failed-login throttling.
func WithThrottle(throttle LoginThrottle) ServiceOption {
	return func(s *Service) {
		s.throttle = throttle
	}
}

// WithLoginRecorder sets the observer for login outcomes.
func WithLoginRecorder(recorder LoginRecorder) ServiceOption {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithClock overrides the time source for creation and issuance timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service provides registration and login.
type Service struct {
	players     PlayerRepository
	hasher      PasswordHasher
	tokens      TokenIssuer
	throttle    LoginThrottle
	recorder    LoginRecorder
	logger      *slog.Logger
	now         func() time.Time
	dummyDigest string
}

// NewService creates a new Service.
func NewService(players PlayerRepository, hasher PasswordHasher, tokens TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if players == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("players repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token issuer is required")
	}
	s := &Service{
		players: players,
		hasher:  hasher,
		tokens:  tokens,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Unknown usernames verify against a digest of the same cost as real ones.
	dummy, err := hasher.Hash(ulid.Make().String())
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").With("operation", "hash dummy password").Wrap(err)
	}
	s.dummyDigest = dummy
	return s, nil
}

// Register creates an active player and logs them in.
func (s *Service) Register(ctx context.Context, username, email, password string) (session *Session, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer endSpan(span, &err)

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	normalizedEmail, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, username, normalizedEmail); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	player, err := NewPlayer(username, normalizedEmail, digest, s.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return nil, err
	}

	if err := s.players.Create(ctx, player); err != nil {
		if errors.Is(err, errutil.ErrConflict) {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create player").
			With("username", username).
			Wrap(err)
	}
	span.SetAttributes(attribute.Int64("player.id", player.ID))

	return s.issue(player)
}

func (s *Service) ensureAvailable(ctx context.Context, username, email string) error {
	_, err := s.players.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return oops.Code("AUTH_USERNAME_TAKEN").
			With("username", username).
			Wrap(errutil.Public(errutil.ErrConflict, "username already registered"))
	case !errors.Is(err, ErrNotFound):
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get player by username").
			Wrap(err)
	}

	_, err = s.players.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return oops.Code("AUTH_EMAIL_TAKEN").
			Wrap(errutil.Public(errutil.ErrConflict, "email already registered"))
	case !errors.Is(err, ErrNotFound):
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get player by email").
			Wrap(err)
	}
	return nil
}

// Login verifies the password and issues a session token.
// Unknown usernames and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (session *Session, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer endSpan(span, &err)

	if s.throttle != nil {
		allowed, throttleErr := s.throttle.Allow(ctx, username)
		if throttleErr != nil {
			s.logBestEffort(ctx, "throttle_allow", throttleErr)
		} else if !allowed {
			s.record(LoginResultRateLimited)
			return nil, oops.Code("AUTH_RATE_LIMITED").
				With("username", username).
				Wrap(errutil.Public(errutil.ErrRateLimited, "too many failed login attempts, try again later"))
		}
	}

	player, lookupErr := s.players.GetByUsername(ctx, username)
	targetHash := s.dummyDigest
	switch {
	case lookupErr == nil:
		targetHash = player.PasswordHash
	case !errors.Is(lookupErr, ErrNotFound):
		s.record(LoginResultError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get player by username").
			Wrap(lookupErr)
	}

	// Always verify, even against the dummy digest.
	valid := s.hasher.Verify(password, targetHash)

	if lookupErr != nil || !valid {
		if s.throttle != nil {
			if err := s.throttle.RecordFailure(ctx, username); err != nil {
				s.logBestEffort(ctx, "throttle_record_failure", err)
			}
		}
		s.record(LoginResultInvalid)
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").
			Wrap(errutil.Public(errutil.ErrUnauthenticated, "invalid username or password"))
	}

	// Only a caller holding the password learns the account is inactive.
	if !player.Active {
		s.record(LoginResultInactive)
		return nil, oops.Code("AUTH_ACCOUNT_INACTIVE").
			With("player_id", player.ID).
			Wrap(errutil.Public(errutil.ErrAccountInactive, "inactive user"))
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, username); err != nil {
			s.logBestEffort(ctx, "throttle_reset", err)
		}
	}

	session, err = s.issue(player)
	if err != nil {
		s.record(LoginResultError)
		return nil, err
	}
	s.record(LoginResultSuccess)
	return session, nil
}

func (s *Service) issue(player *Player) (*Session, error) {
	issuedAt := s.now()
	token, err := s.tokens.Issue(player.ID, issuedAt)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("player_id", player.ID).
			Wrap(err)
	}
	return &Session{
		Token:     token,
		TokenType: TokenType,
		ExpiresAt: issuedAt.Add(s.tokens.TTL()),
		Player:    player,
	}, nil
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(result)
	}
}

func (s *Service) logBestEffort(ctx context.Context, operation string, err error) {
	s.logger.WarnContext(ctx, "best-effort login throttle operation failed",
		"operation", operation,
		"error", err.Error(),
	)
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, errutil.Classify(*err).Code)
	}
	span.End()
}
