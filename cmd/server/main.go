package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	interviewerroot "github.com/opinari/interviewer"
	"github.com/opinari/interviewer/internal/agent"
	"github.com/opinari/interviewer/internal/config"
	"github.com/opinari/interviewer/internal/handler"
	"github.com/opinari/interviewer/internal/llm"
	"github.com/opinari/interviewer/internal/repository"
	"github.com/opinari/interviewer/internal/service"
	"github.com/opinari/interviewer/internal/store"
	"github.com/opinari/interviewer/internal/telegram"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(interviewerroot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	st := store.NewPostgres(pool)

	// Model provider: real Anthropic API or the deterministic mock
	var provider llm.Provider
	if cfg.UseMockLLM {
		provider = llm.NewMockProvider(time.Now().UnixNano())
		slog.Info("using mock model provider")
	} else {
		provider = llm.NewAnthropicProvider(cfg.AnthropicAPIKey)
	}

	invoker := llm.NewClient(provider, llm.DefaultPricing(), llm.Options{
		Timeout:     cfg.LLMRequestTimeout,
		MaxRetries:  cfg.LLMMaxRetries,
		CostCeiling: cfg.CostCeiling(),
	})

	// Initialize services
	surveys := service.NewSurveyService(st)
	interviews := service.NewInterviewService(st, surveys,
		agent.NewFollowupAgent(invoker, cfg.MaxFollowupProbes),
		agent.NewSummaryAgent(invoker),
		cfg.MaxFollowupProbes, cfg.SessionIdleTimeout)

	// Background sweep for idle sessions
	go func() {
		ticker := time.NewTicker(cfg.AbandonSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := interviews.AbandonIdle(ctx); err != nil {
					slog.Error("idle session sweep failed", "error", err)
				}
			}
		}
	}()

	// Optional Telegram respondent channel
	if cfg.TelegramEnabled {
		tb, err := telegram.New(cfg.TelegramToken, cfg.TelegramSurvey, interviews)
		if err != nil {
			slog.Error("failed to create telegram bot", "error", err)
			os.Exit(1)
		}
		go tb.Start(ctx)
	}

	// HTTP server
	h := handler.New(interviews, surveys)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h.Router(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	go func() {
		slog.Info("http server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
}
