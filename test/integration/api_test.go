// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"

	"github.com/geoelevate/geoelevate/internal/auth"
	authpg "github.com/geoelevate/geoelevate/internal/auth/postgres"
	"github.com/geoelevate/geoelevate/internal/scores"
	scorespg "github.com/geoelevate/geoelevate/internal/scores/postgres"
	"github.com/geoelevate/geoelevate/internal/throttle"
	"github.com/geoelevate/geoelevate/internal/web"
)

type apiClient struct {
	baseURL string
	client  *http.Client
}

func (c *apiClient) call(method, path, token string, body any) (int, map[string]any) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, c.baseURL+path, rd)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		Expect(json.Unmarshal(raw, &out)).To(Succeed())
	}
	return resp.StatusCode, out
}

func (c *apiClient) list(path string) []map[string]any {
	resp, err := c.client.Get(c.baseURL + path) //nolint:noctx // test-only loopback request
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()
	Expect(resp.StatusCode).To(Equal(http.StatusOK))

	var out []map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return out
}

var _ = Describe("HTTP API", func() {
	var (
		ctx    context.Context
		server *httptest.Server
		api    *apiClient
		rdb    *redis.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx)

		mr, err := miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(rdb.Close)

		players := authpg.NewPlayerRepository(env.pool)
		hasher := auth.NewArgon2idHasher(auth.Argon2Params{Time: 1, MemoryKiB: 8 * 1024, Threads: 1})
		tokens, err := auth.NewTokenService([]byte("integration-secret-0123456789"), time.Hour)
		Expect(err).NotTo(HaveOccurred())
		th, err := throttle.New(rdb, 3, time.Minute)
		Expect(err).NotTo(HaveOccurred())

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		accounts, err := auth.NewService(players, hasher, tokens, auth.WithLogger(logger), auth.WithThrottle(th))
		Expect(err).NotTo(HaveOccurred())
		gate, err := auth.NewGate(tokens, players)
		Expect(err).NotTo(HaveOccurred())

		repo := scorespg.NewScoreRepository(env.pool)
		scoreSvc, err := scores.NewService(repo, players)
		Expect(err).NotTo(HaveOccurred())
		reconciler, err := scores.NewReconciler(repo)
		Expect(err).NotTo(HaveOccurred())

		srv, err := web.NewServer(accounts, gate, scoreSvc, reconciler, web.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		server = httptest.NewServer(srv.Handler())
		DeferCleanup(server.Close)
		api = &apiClient{baseURL: server.URL, client: server.Client()}
	})

	signup := func(username string) string {
		status, body := api.call(http.MethodPost, "/api/auth/signup", "", map[string]string{
			"username": username,
			"email":    username + "@example.com",
			"password": "secret123",
		})
		Expect(status).To(Equal(http.StatusCreated))
		return body["access_token"].(string)
	}

	It("registers, logs in and resolves the current user", func() {
		signup("alice")

		status, body := api.call(http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": "secret123",
		})
		Expect(status).To(Equal(http.StatusOK))
		token := body["access_token"].(string)

		status, me := api.call(http.MethodGet, "/api/users/me", token, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(me["username"]).To(Equal("alice"))
		Expect(me["is_active"]).To(BeTrue())
	})

	It("rejects a second account with the same email in another case", func() {
		signup("alice")
		status, _ := api.call(http.MethodPost, "/api/auth/signup", "", map[string]string{
			"username": "alice2",
			"email":    "ALICE@example.com",
			"password": "secret123",
		})
		Expect(status).To(Equal(http.StatusConflict))
	})

	It("throttles repeated failed logins", func() {
		signup("alice")
		bad := map[string]string{"username": "alice", "password": "wrong-password"}
		for range 3 {
			status, _ := api.call(http.MethodPost, "/api/auth/login", "", bad)
			Expect(status).To(Equal(http.StatusUnauthorized))
		}

		status, _ := api.call(http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": "secret123",
		})
		Expect(status).To(Equal(http.StatusTooManyRequests))
	})

	It("records scores and serves leaderboard and stats", func() {
		alice := signup("alice")
		bob := signup("bob")

		for _, s := range []struct {
			token string
			mode  string
			score int
		}{
			{alice, "capitals", 80},
			{bob, "capitals", 95},
			{alice, "flags", 70},
			{alice, "capitals", 60},
		} {
			status, _ := api.call(http.MethodPost, "/api/scores", s.token, map[string]any{
				"game_mode":          s.mode,
				"score":              s.score,
				"questions_answered": 10,
			})
			Expect(status).To(Equal(http.StatusCreated))
		}

		board := api.list("/api/scores/leaderboard/capitals?limit=10")
		Expect(board).To(HaveLen(3))
		Expect(board[0]["username"]).To(Equal("bob"))
		Expect(board[0]["rank"]).To(BeEquivalentTo(1))
		Expect(board[2]["score"]).To(BeEquivalentTo(60))

		status, stats := api.call(http.MethodGet, "/api/users/alice/stats", "", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(stats["total_games"]).To(BeEquivalentTo(3))
		Expect(stats["best_capitals"]).To(BeEquivalentTo(80))
		Expect(stats["best_flags"]).To(BeEquivalentTo(70))
		Expect(stats["best_speed"]).To(BeEquivalentTo(0))
		Expect(stats["total_score"]).To(BeEquivalentTo(210))
	})

	It("imports a batch of client-held scores atomically", func() {
		token := signup("alice")

		status, body := api.call(http.MethodPost, "/api/scores/migrate", token, map[string]any{
			"scores": []map[string]any{
				{"mode": "capitals", "score": 40, "date": "2025-12-01T10:00:00Z"},
				{"mode": "speed", "score": 55, "date": "not-a-date"},
			},
		})
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body["count"]).To(BeEquivalentTo(2))

		status, _ = api.call(http.MethodPost, "/api/scores/migrate", token, map[string]any{
			"scores": []map[string]any{
				{"mode": "capitals", "score": 10, "date": "2025-12-01"},
				{"mode": "geography", "score": 10, "date": "2025-12-01"},
			},
		})
		Expect(status).To(Equal(http.StatusBadRequest))

		var count int
		Expect(env.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scores`).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(2))
	})
})
