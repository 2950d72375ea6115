// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package web exposes the GeoElevate operations as a JSON HTTP API.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/internal/auth"
	"github.com/geoelevate/geoelevate/internal/scores"
)

// APIVersion is reported by GET /.
const APIVersion = "1.0.0"

// Accounts registers players and logs them in.
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (*auth.Session, error)
	Login(ctx context.Context, username, password string) (*auth.Session, error)
}

// Authenticator resolves a bearer token to an active player.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (*auth.Player, error)
}

// Scores submits and queries score records.
type Scores interface {
	Submit(ctx context.Context, playerID int64, mode string, score, questionsAnswered int) (*scores.Record, error)
	ListForUser(ctx context.Context, playerID int64, mode string, limit int) ([]scores.Record, error)
	Leaderboard(ctx context.Context, mode string, limit int) ([]scores.LeaderboardEntry, error)
	StatsFor(ctx context.Context, username string) (*scores.UserStats, error)
}

// ScoreMigrator imports client-held score history.
type ScoreMigrator interface {
	Migrate(ctx context.Context, playerID int64, entries []scores.MigrationEntry) (scores.MigrationResult, error)
}

// RequestObserver records finished requests, typically as metrics.
type RequestObserver interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
}

// Option configures a Server during construction.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the request observer.
func WithObserver(observer RequestObserver) Option {
	return func(s *Server) {
		s.observer = observer
	}
}

// WithCORSOrigins sets the origins allowed to call the API with credentials.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// Server routes HTTP requests to the account and score services.
type Server struct {
	accounts    Accounts
	auth        Authenticator
	scores      Scores
	migrator    ScoreMigrator
	observer    RequestObserver
	logger      *slog.Logger
	corsOrigins []string
	validator   *validator
}

// NewServer creates a new Server.
func NewServer(accounts Accounts, authn Authenticator, scoreSvc Scores, migrator ScoreMigrator, opts ...Option) (*Server, error) {
	switch {
	case accounts == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("accounts service is required")
	case authn == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("authenticator is required")
	case scoreSvc == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("scores service is required")
	case migrator == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("score migrator is required")
	}

	v, err := newValidator()
	if err != nil {
		return nil, err
	}

	s := &Server{
		accounts:  accounts,
		auth:      authn,
		scores:    scoreSvc,
		migrator:  migrator,
		logger:    slog.Default(),
		validator: v,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed API with CORS and request ids applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.observe)
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.requireBearer(s.handleMe)).Methods(http.MethodGet)

	api.HandleFunc("/scores", s.requireBearer(s.handleSubmitScore)).Methods(http.MethodPost)
	api.HandleFunc("/scores/me", s.requireBearer(s.handleMyScores)).Methods(http.MethodGet)
	api.HandleFunc("/scores/leaderboard/{game_mode}", s.handleLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/scores/migrate", s.requireBearer(s.handleMigrate)).Methods(http.MethodPost)

	api.HandleFunc("/users/me", s.requireBearer(s.handleMe)).Methods(http.MethodGet)
	api.HandleFunc("/users/{username}/stats", s.handleUserStats).Methods(http.MethodGet)

	var h http.Handler = r
	h = withRequestID(h)
	if len(s.corsOrigins) > 0 {
		h = corsHandler(s.corsOrigins)(h)
	}
	return h
}

// NewHTTPServer wraps handler with the timeouts used in production.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
