// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/rs/cors"
	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/internal/auth"
	"github.com/geoelevate/geoelevate/pkg/errutil"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type contextKey int

const (
	playerKey contextKey = iota
	requestIDKey
)

// PlayerFromContext returns the authenticated player set by the bearer
// middleware.
func PlayerFromContext(ctx context.Context) (*auth.Player, bool) {
	p, ok := ctx.Value(playerKey).(*auth.Player)
	return p, ok && p != nil
}

// RequestIDFromContext returns the id assigned to the current request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestID reuses a client supplied id or assigns a fresh ULID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = ulid.Make().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// observe logs each request and records it on the observer under its route
// template.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				s.logger.ErrorContext(r.Context(), "handler panic",
					"panic", p,
					"request_id", RequestIDFromContext(r.Context()))
				rec.status = http.StatusInternalServerError
				writeJSON(rec, http.StatusInternalServerError,
					ErrorResponse{Code: errutil.CodeInternal, Detail: "internal error"})
			}

			route := routeTemplate(r)
			elapsed := time.Since(start)
			if s.observer != nil {
				s.observer.ObserveRequest(route, rec.status, elapsed)
			}
			s.logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", RequestIDFromContext(r.Context()))
		}()

		next.ServeHTTP(rec, r)
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// requireBearer resolves the Authorization bearer token to an active player.
func (s *Server) requireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			s.writeError(w, r, oops.Code("AUTH_TOKEN_MISSING").
				Wrap(errutil.Public(errutil.ErrUnauthenticated, "not authenticated")))
			return
		}
		player, err := s.auth.Resolve(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), playerKey, player)))
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler
}
