// Playbookd serves the brand playbook API: document ingestion, retrieval and
// grounded question answering over HTTP.
//
// Configuration is read from ~/.config/playbook/config.yaml (or --config)
// and environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	OPENAI_API_KEY=sk-... playbookd
//
//	# Use qdrant and a different port
//	VECTORSTORE_PROVIDER=qdrant SERVER_PORT=9000 playbookd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tom2tomtomtom/Playbook/internal/config"
	httpapi "github.com/tom2tomtomtom/Playbook/internal/http"
	"github.com/tom2tomtomtom/Playbook/internal/logging"
	"github.com/tom2tomtomtom/Playbook/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/playbook/config.yaml)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  playbookd [--config path]   Start the playbook API server\n")
			fmt.Fprintf(os.Stderr, "  playbookd version           Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printVersion() {
	fmt.Printf("playbookd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the server and blocks until ctx is cancelled, then shuts
// down the HTTP server, the pipeline and telemetry in that order.
func run(ctx context.Context, configPath string) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zl := logger.Underlying()

	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("problems", h.Problems))
	}

	logger.Info(ctx, "starting playbookd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("embeddings", cfg.Embeddings.Provider+"/"+cfg.Embeddings.Model),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("vectorstore", cfg.VectorStore.Provider),
	)

	deps, err := initDependencies(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}

	srv, err := httpapi.NewServer(deps.index, deps.generator, deps.splitter, zl.Named("http"), &httpapi.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		Version:           version,
		MaxUploadBytes:    cfg.Upload.MaxBytes(),
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		MetricsPath:       cfg.Server.MetricsPath,
		Registry:          deps.registry,
	})
	if err != nil {
		_ = deps.Close()
		return fmt.Errorf("creating http server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var startErr error
	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	case startErr = <-serveErr:
		if startErr != nil {
			logger.Error(context.Background(), "http server failed", zap.Error(startErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	err = errors.Join(
		srv.Shutdown(shutdownCtx),
		deps.Close(),
		tel.Shutdown(shutdownCtx),
	)
	if serr, ok := <-serveErr; ok && serr != nil {
		startErr = serr
	}
	err = errors.Join(startErr, err)
	if err == nil {
		logger.Info(context.Background(), "shutdown complete")
	}
	return err
}
