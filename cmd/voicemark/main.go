// Command voicemark is the name-resolution and grading server: it maps noisy
// transcribed student names onto a class roster and keeps score counters in a
// gradebook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mingshi/voicemark/internal/app"
	"github.com/mingshi/voicemark/internal/config"
	"github.com/mingshi/voicemark/internal/grade"
	"github.com/mingshi/voicemark/internal/health"
	"github.com/mingshi/voicemark/internal/match"
	"github.com/mingshi/voicemark/internal/observe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicemark: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicemark: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	slog.Info("voicemark starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
		"gradebook", cfg.Gradebook.Kind,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry providers ───────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Gradebook backend ─────────────────────────────────────────────────────
	book, closeBook, err := openGradebook(ctx, cfg.Gradebook)
	if err != nil {
		slog.Error("failed to open gradebook", "err", err)
		return 1
	}
	defer closeBook()

	// ── Service ───────────────────────────────────────────────────────────────
	var matchOpts []match.Option
	if cfg.Matching.MaxEditDistance != nil {
		matchOpts = append(matchOpts, match.WithThreshold(*cfg.Matching.MaxEditDistance))
	}
	if cfg.Matching.TopCandidateCap != nil {
		matchOpts = append(matchOpts, match.WithCandidateCap(*cfg.Matching.TopCandidateCap))
	}
	resolver := match.New(matchOpts...)

	svc, err := app.New(ctx, book, app.WithResolver(resolver))
	if err != nil {
		slog.Error("failed to initialise service", "err", err)
		return 1
	}
	slog.Info("roster loaded", "threshold", resolver.Threshold())

	// ── HTTP surface ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	svc.Register(mux)
	health.New(
		health.GradebookChecker(book),
		health.RosterChecker(svc.Roster()),
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// openGradebook constructs the gradebook backend selected in cfg. The
// returned close function releases any underlying resources.
func openGradebook(ctx context.Context, cfg config.GradebookConfig) (grade.Book, func(), error) {
	noop := func() {}

	switch cfg.Kind {
	case config.GradebookMemory:
		book, err := grade.NewMemBook(nil)
		if err != nil {
			return nil, noop, err
		}
		return book, noop, nil

	case config.GradebookFile:
		book, err := grade.OpenFileBook(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return book, noop, nil

	case config.GradebookPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		book := grade.NewPostgresBook(pool)
		if err := book.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return book, pool.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown gradebook kind %q", cfg.Kind)
	}
}

// newLogger builds the process-wide JSON logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
