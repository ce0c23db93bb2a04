package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/bounty-cli/internal/config"
	"github.com/sells-group/bounty-cli/internal/decision"
	"github.com/sells-group/bounty-cli/internal/history"
	"github.com/sells-group/bounty-cli/internal/model"
	"github.com/sells-group/bounty-cli/internal/quickscore"
	"github.com/sells-group/bounty-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring and decision API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Snapshot history once at startup. Decisions served here use the
		// corpus as of boot; restart to pick up new history.
		corpus, err := env.Store.ListBounties(ctx, store.BountyFilter{Limit: 100_000})
		if err != nil {
			return eris.Wrap(err, "serve: list corpus")
		}
		snap, malformed := history.Build(corpus)
		for _, mErr := range malformed {
			zap.L().Warn("excluding malformed record from history", zap.Error(mErr))
		}
		engine := decision.NewEngine(cfg.Decision, snap)

		r := buildRouter(env.Scorer, env.Store, engine, cfg.Server)
		return startServer(ctx, r, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter assembles the API routes with CORS and rate limiting.
func buildRouter(scorer *quickscore.Scorer, st store.Store, engine *decision.Engine, srvCfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: srvCfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimit(rate.Limit(srvCfg.RatePerSecond), srvCfg.RateBurst))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/score", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title       string `json:"title"`
			Body        string `json:"body"`
			RewardCents int64  `json:"reward_cents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Title == "" && req.Body == "" {
			writeJSONError(w, http.StatusBadRequest, "title or body is required")
			return
		}
		writeJSON(w, http.StatusOK, scorer.Score(req.Title, req.Body, req.RewardCents))
	})

	r.Post("/api/decide", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Bounty    model.Bounty `json:"bounty"`
			Tolerance string       `json:"tolerance"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		tol, err := decision.ParseRiskTolerance(req.Tolerance)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err := engine.Decide(&req.Bounty, tol)
		if err != nil {
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Get("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		m, err := st.LatestSessionMetrics(r.Context())
		if err != nil {
			zap.L().Error("load latest metrics", zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "failed to load metrics")
			return
		}
		if m == nil {
			writeJSONError(w, http.StatusNotFound, "no session metrics recorded")
			return
		}
		writeJSON(w, http.StatusOK, m)
	})

	return r
}

// resolvePort prefers the --port flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves until ctx is canceled, then drains in-flight requests
// on a fresh timeout context so shutdown stays graceful after the signal
// context is already done.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}

	return nil
}

func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
