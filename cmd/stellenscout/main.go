// stellenscout — personalised job-digest service
//
// Pipeline: CV → profile → search queries → aggregated job search →
// LLM screening → scored digest email, on a fixed schedule.
// Exposes a small REST API for the subscription lifecycle:
//   - POST /subscribe          — double-opt-in signup
//   - GET  /confirm?token=     — activate (30-day window starts here)
//   - POST /context            — CV upload, derives profile + queries
//   - GET  /unsubscribe?token= — deactivate and wipe personal data
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/TheTrueAI/stellenscout/internal/agent"
	"github.com/TheTrueAI/stellenscout/internal/cache"
	"github.com/TheTrueAI/stellenscout/internal/config"
	"github.com/TheTrueAI/stellenscout/internal/digest"
	"github.com/TheTrueAI/stellenscout/internal/llm"
	"github.com/TheTrueAI/stellenscout/internal/mailer"
	"github.com/TheTrueAI/stellenscout/internal/model"
	"github.com/TheTrueAI/stellenscout/internal/registry"
	"github.com/TheTrueAI/stellenscout/internal/scheduler"
	"github.com/TheTrueAI/stellenscout/internal/scorer"
	"github.com/TheTrueAI/stellenscout/internal/search"
	"github.com/TheTrueAI/stellenscout/internal/store"
	"github.com/TheTrueAI/stellenscout/internal/web"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[stellenscout] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[stellenscout] Connecting to PostgreSQL…")
	readerPool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[stellenscout] PostgreSQL (reader): %v", err)
	}
	defer readerPool.Close()

	adminPool, err := store.NewPool(ctx, cfg.DatabaseAdminURL)
	if err != nil {
		log.Fatalf("[stellenscout] PostgreSQL (admin): %v", err)
	}
	defer adminPool.Close()

	if err := store.EnsureSchema(ctx, adminPool); err != nil {
		log.Fatalf("[stellenscout] Schema: %v", err)
	}
	log.Println("[stellenscout] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[stellenscout] Connecting to Redis…")
	backend, rdb, err := cache.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[stellenscout] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[stellenscout] Redis connected ✓")
	contentCache := cache.New(backend)

	// ── Pipeline components ─────────────────────────────────────────────────
	llmClient, err := llm.NewClient(cfg.GoogleAPIKey,
		llm.WithModel(cfg.LLMModel),
		llm.WithRetry(cfg.RetryMax, time.Duration(cfg.RetryBaseSecs)*time.Second),
	)
	if err != nil {
		log.Fatalf("[stellenscout] LLM client: %v", err)
	}
	ag := agent.New(llmClient, contentCache)

	provider, err := search.NewProvider(cfg.SearchProvider, cfg.SerpAPIKey)
	if err != nil {
		log.Fatalf("[stellenscout] Search provider: %v", err)
	}
	denylist := append(append([]string{}, search.DefaultDenylist...), cfg.ExtraDenylist...)
	searchAll := func(ctx context.Context, queries []string, location string) []model.JobListing {
		return search.SearchAll(ctx, provider, queries, location, cfg.JobsPerQuery, denylist)
	}

	engine := scorer.NewEngine(ag.ScoreJob, contentCache, cfg.ScorerConcurrency)

	reg := registry.New(adminPool)
	reg.ConfirmTokenTTL = time.Duration(cfg.ConfirmTokenHours) * time.Hour
	reg.SubscriptionDays = cfg.SubscriptionDays
	reg.PurgeGraceDays = cfg.PurgeGraceDays
	reg.DefaultMinScore = cfg.DefaultMinScore

	jobs := store.New(readerPool, adminPool)
	mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)

	orch := digest.New(reg, jobs, contentCache, searchAll, engine, mail, cfg.AppURL)

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(orch, cfg.DigestIntervalHours)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[stellenscout] Scheduler: %v", err)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	h := web.NewHandler(reg, ag, mail, cfg.AppURL)
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // /context waits on LLM calls
	}

	go func() {
		log.Printf("[stellenscout] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[stellenscout] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[stellenscout] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[stellenscout] Shutdown error: %v", err)
	}
	log.Println("[stellenscout] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "stellenscout",
		"version": version,
	})
}
