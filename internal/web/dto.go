// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package web

import (
	"time"

	"github.com/geoelevate/geoelevate/internal/auth"
	"github.com/geoelevate/geoelevate/internal/scores"
)

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Username string `json:"username" jsonschema:"description=Login name; 3 to 50 letters digits underscores hyphens or dots"`
	Email    string `json:"email" jsonschema:"description=Contact address"`
	Password string `json:"password" jsonschema:"description=At least 6 characters"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ScoreCreateRequest is the body of POST /api/scores.
type ScoreCreateRequest struct {
	GameMode          string `json:"game_mode" jsonschema:"enum=capitals,enum=flags,enum=speed"`
	Score             int    `json:"score"`
	QuestionsAnswered int    `json:"questions_answered"`
}

// MigrationEntryRequest is one element of ScoreMigrateRequest.Scores.
type MigrationEntryRequest struct {
	Mode  string `json:"mode"`
	Score int    `json:"score"`
	Date  string `json:"date" jsonschema:"description=ISO-8601 timestamp; unparseable values are stored as the import time"`
}

// ScoreMigrateRequest is the body of POST /api/scores/migrate.
type ScoreMigrateRequest struct {
	Scores []MigrationEntryRequest `json:"scores" jsonschema:"maxItems=1000"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// TokenResponse is returned by signup and login.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

// ScoreResponse is one stored score.
type ScoreResponse struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	GameMode          string    `json:"game_mode"`
	Score             int       `json:"score"`
	QuestionsAnswered int       `json:"questions_answered"`
	CreatedAt         time.Time `json:"created_at"`
	Username          *string   `json:"username"`
}

// LeaderboardEntryResponse is one ranked leaderboard row.
type LeaderboardEntryResponse struct {
	Rank              int       `json:"rank"`
	Username          string    `json:"username"`
	Score             int       `json:"score"`
	QuestionsAnswered int       `json:"questions_answered"`
	CreatedAt         time.Time `json:"created_at"`
}

// UserStatsResponse summarizes one player's results.
type UserStatsResponse struct {
	Username     string `json:"username"`
	TotalGames   int64  `json:"total_games"`
	BestCapitals int    `json:"best_capitals"`
	BestFlags    int    `json:"best_flags"`
	BestSpeed    int    `json:"best_speed"`
	TotalScore   int64  `json:"total_score"`
}

// MigrateResponse reports an import.
type MigrateResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func newUserResponse(p *auth.Player) UserResponse {
	return UserResponse{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
		IsActive:  p.Active,
	}
}

func newTokenResponse(s *auth.Session) TokenResponse {
	return TokenResponse{
		AccessToken: s.Token,
		TokenType:   s.TokenType,
		User:        newUserResponse(s.Player),
	}
}

func newScoreResponse(r *scores.Record) ScoreResponse {
	return ScoreResponse{
		ID:                r.ID,
		UserID:            r.PlayerID,
		GameMode:          r.GameMode.String(),
		Score:             r.Score,
		QuestionsAnswered: r.QuestionsAnswered,
		CreatedAt:         r.CreatedAt,
	}
}

func newLeaderboardResponse(entries []scores.LeaderboardEntry) []LeaderboardEntryResponse {
	out := make([]LeaderboardEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = LeaderboardEntryResponse{
			Rank:              e.Rank,
			Username:          e.Username,
			Score:             e.Score,
			QuestionsAnswered: e.QuestionsAnswered,
			CreatedAt:         e.CreatedAt,
		}
	}
	return out
}

func newUserStatsResponse(s *scores.UserStats) UserStatsResponse {
	return UserStatsResponse{
		Username:     s.Username,
		TotalGames:   s.TotalGames,
		BestCapitals: s.BestCapitals,
		BestFlags:    s.BestFlags,
		BestSpeed:    s.BestSpeed,
		TotalScore:   s.TotalScore,
	}
}
