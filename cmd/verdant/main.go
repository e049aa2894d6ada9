package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Mindburn-Labs/verdant/pkg/api"
	"github.com/Mindburn-Labs/verdant/pkg/audit"
	"github.com/Mindburn-Labs/verdant/pkg/auth"
	"github.com/Mindburn-Labs/verdant/pkg/batch"
	"github.com/Mindburn-Labs/verdant/pkg/config"
	"github.com/Mindburn-Labs/verdant/pkg/cooldown"
	"github.com/Mindburn-Labs/verdant/pkg/engine"
	"github.com/Mindburn-Labs/verdant/pkg/judge"
	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/observability"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
	"github.com/Mindburn-Labs/verdant/pkg/store"
)

func main() {
	batchMode := flag.Bool("batch", false, "run one batch evaluation pass and exit")
	flag.Parse()

	if err := run(*batchMode); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

type entityStore interface {
	engine.SubjectStore
	engine.EvaluationStore
	audit.Logger
}

func run(batchMode bool) error {
	cfg := config.Load()
	initLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Rubric: compiled defaults unless a profile overrides the calibration.
	r := rubric.Default()
	if cfg.RubricProfile != "" {
		loaded, err := rubric.LoadProfile(cfg.RubricProfile)
		if err != nil {
			return fmt.Errorf("rubric profile: %w", err)
		}
		r = loaded
	}

	eng, err := engine.New(r)
	if err != nil {
		return err
	}
	validator, err := judgment.NewValidator(r)
	if err != nil {
		return err
	}

	var st entityStore
	switch cfg.DatabaseDriver {
	case "postgres":
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = pg.Close() }()
		st = pg
	default:
		sq, err := store.OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = sq.Close() }()
		st = sq
	}

	var guard engine.Guard
	if cfg.RedisAddr != "" {
		rg := cooldown.NewRedisGuard(cfg.RedisAddr, cfg.RedisPassword, 0, cfg.Cooldown)
		defer func() { _ = rg.Close() }()
		guard = rg
	} else {
		guard = cooldown.NewMemoryGuard(cfg.Cooldown)
	}

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "verdant-engine",
		ServiceVersion: "1.0.0",
		Environment:    "production",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTelEnabled,
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	aiJudge := judge.NewOpenAIJudge(cfg.JudgeURL, cfg.JudgeAPIKey, cfg.JudgeModel,
		judge.WithTimeout(cfg.JudgeTimeout))

	auditLog := audit.Tee(st, audit.NewLineLogger(os.Stdout))
	orchestrator := engine.NewOrchestrator(eng, validator, aiJudge, st, st, auditLog,
		engine.WithGuard(guard),
		engine.WithCooldown(cfg.Cooldown),
	)

	if batchMode {
		driver := batch.NewDriver(orchestrator, st, cfg.BatchSize)
		_, err := driver.Run(ctx)
		return err
	}

	service := api.NewEvaluationService(orchestrator, st).WithObservability(obs)
	mux := http.NewServeMux()
	service.Routes(mux)

	validatorJWT := auth.NewJWTValidator([]byte(cfg.AuthSecret))
	limiter := api.NewGlobalRateLimiter(10, 20)

	handler := api.RequestIDMiddleware(
		limiter.Middleware(
			auth.NewMiddleware(validatorJWT)(mux),
		),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "port", cfg.Port, "driver", cfg.DatabaseDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func initLogger(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
