// Command scribed is the main entry point for the scribed real-time
// transcription gateway.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/scribed-io/scribed/internal/auth"
	"github.com/scribed-io/scribed/internal/chunkstore"
	"github.com/scribed-io/scribed/internal/config"
	"github.com/scribed-io/scribed/internal/gateway"
	"github.com/scribed-io/scribed/internal/health"
	"github.com/scribed-io/scribed/internal/observe"
	"github.com/scribed-io/scribed/internal/registry"
	"github.com/scribed-io/scribed/internal/transcribe"
	"github.com/scribed-io/scribed/pkg/engine/whispercpp"
	"github.com/scribed-io/scribed/pkg/metastore"
	"github.com/scribed-io/scribed/pkg/metastore/memstore"
	"github.com/scribed-io/scribed/pkg/metastore/postgres"
)

const version = "0.1.0"

// shutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM.
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
			fmt.Fprintf(os.Stderr, "scribed: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "scribed: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("scribed starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry providers ───────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "scribed",
		ServiceVersion: version,
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
	metrics := observe.DefaultMetrics()

	// ── Transcription engine ──────────────────────────────────────────────────
	// An unloadable model is fatal here; it is never a per-call error.
	var engineOpts []whispercpp.Option
	if cfg.Engine.Language != "" {
		engineOpts = append(engineOpts, whispercpp.WithLanguage(cfg.Engine.Language))
	}
	eng, err := whispercpp.New(cfg.Engine.ModelPath, engineOpts...)
	if err != nil {
		slog.Error("failed to load transcription model", "model_path", cfg.Engine.ModelPath, "err", err)
		return 1
	}
	defer eng.Close()
	slog.Info("transcription model loaded", "model_path", cfg.Engine.ModelPath, "workers", cfg.Engine.Workers)

	orch, err := transcribe.New(eng, cfg.Engine.Workers, metrics)
	if err != nil {
		slog.Error("failed to create orchestrator", "err", err)
		return 1
	}

	// ── Metadata store ────────────────────────────────────────────────────────
	var (
		store        metastore.Store
		storeChecker health.Checker
	)
	if cfg.Store.PostgresDSN != "" {
		pg, err := postgres.New(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		store = pg
		storeChecker = health.PingChecker("metastore", pg)
		slog.Info("using postgres metadata store")
	} else {
		store = memstore.New()
		storeChecker = health.StaticChecker("metastore", nil)
		slog.Warn("store.postgres_dsn is empty; using in-memory metadata store, sessions will not survive restarts")
	}
	defer store.Close()

	// ── Chunk store and session registry ──────────────────────────────────────
	chunks, err := chunkstore.New(cfg.Chunks.Dir)
	if err != nil {
		slog.Error("failed to create chunk store", "dir", cfg.Chunks.Dir, "err", err)
		return 1
	}
	sessions := registry.New()

	// ── Auth ──────────────────────────────────────────────────────────────────
	secret, err := cfg.Auth.SigningSecret()
	if err != nil {
		slog.Error("failed to resolve signing secret", "err", err)
		return 1
	}
	var verifierOpts []auth.JWTOption
	if cfg.Auth.Issuer != "" {
		verifierOpts = append(verifierOpts, auth.WithIssuer(cfg.Auth.Issuer))
	}
	if cfg.Auth.Audience != "" {
		verifierOpts = append(verifierOpts, auth.WithAudience(cfg.Auth.Audience))
	}
	verifier, err := auth.NewJWTVerifier(secret, verifierOpts...)
	if err != nil {
		slog.Error("failed to create token verifier", "err", err)
		return 1
	}

	// ── Gateway and HTTP routes ───────────────────────────────────────────────
	gw, err := gateway.NewServer(gateway.Config{
		Verifier:     verifier,
		Sessions:     sessions,
		Chunks:       chunks,
		Orchestrator: orch,
		Store:        store,
		Metrics:      metrics,
		Logger:       logger,
	})
	if err != nil {
		slog.Error("failed to create gateway", "err", err)
		return 1
	}

	mux := http.NewServeMux()
	gw.Register(mux)

	instrumented := http.NewServeMux()
	health.New("scribed", version,
		storeChecker,
		health.DirWritable("chunkdir", cfg.Chunks.Dir),
		health.StaticChecker("engine", nil),
	).Register(instrumented)
	instrumented.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/", observe.Middleware(metrics)(instrumented))

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Serve until signalled ─────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down")
		var err error
		if cfg.Server.TLS != nil {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newLogger builds the process-wide slog logger at the configured level.
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
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
