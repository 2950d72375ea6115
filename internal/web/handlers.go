// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/internal/scores"
	"github.com/geoelevate/geoelevate/pkg/errutil"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "GeoElevate API",
		"version": APIVersion,
		"docs":    "/docs",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Code: errutil.CodeNotFound, Detail: "Not Found"})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Code: "METHOD_NOT_ALLOWED", Detail: "Method Not Allowed"})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := s.decode(w, r, schemaSignup, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTokenResponse(session))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := s.decode(w, r, schemaLogin, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(session))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	player, _ := PlayerFromContext(r.Context())
	writeJSON(w, http.StatusOK, newUserResponse(player))
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	player, _ := PlayerFromContext(r.Context())

	var req ScoreCreateRequest
	if err := s.decode(w, r, schemaScoreCreate, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.scores.Submit(r.Context(), player.ID, req.GameMode, req.Score, req.QuestionsAnswered)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newScoreResponse(rec))
}

func (s *Server) handleMyScores(w http.ResponseWriter, r *http.Request) {
	player, _ := PlayerFromContext(r.Context())

	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recs, err := s.scores.ListForUser(r.Context(), player.ID, r.URL.Query().Get("game_mode"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]ScoreResponse, len(recs))
	for i := range recs {
		out[i] = newScoreResponse(&recs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.scores.Leaderboard(r.Context(), mux.Vars(r)["game_mode"], limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLeaderboardResponse(entries))
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	player, _ := PlayerFromContext(r.Context())

	var req ScoreMigrateRequest
	if err := s.decode(w, r, schemaScoreMigrate, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	entries := make([]scores.MigrationEntry, len(req.Scores))
	for i, e := range req.Scores {
		entries[i] = scores.MigrationEntry{Mode: e.Mode, Score: e.Score, Date: e.Date}
	}

	result, err := s.migrator.Migrate(r.Context(), player.ID, entries)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MigrateResponse{
		Message: fmt.Sprintf("Successfully migrated %d scores", result.Imported),
		Count:   result.Imported,
	})
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.scores.StatsFor(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserStatsResponse(stats))
}

// limitParam reads ?limit=, defaulting to scores.DefaultLimit. Range checks
// happen in the service.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return scores.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, oops.Code("REQUEST_INVALID_LIMIT").
			With("limit", raw).
			Wrap(errutil.Public(errutil.ErrInvalidInput, "limit must be an integer"))
	}
	return limit, nil
}
