package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/config"
	"github.com/chkdhq/chkd/internal/engine"
	"github.com/chkdhq/chkd/internal/gateway"
	"github.com/chkdhq/chkd/internal/store"
	"github.com/spf13/cobra"
)

var gatewayPort int
var gatewayLogDir string

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the chkd coordination gateway daemon",
	Long: `Starts the chkd gateway: a long-running daemon that runs the
coordination engine (worker heartbeat sweeping, optional periodic git
fetch) and exposes a local HTTP API (default: http://127.0.0.1:6080) so
operators and orchestrating agents can:

  • Track repositories and browse the spec checklist
  • Spawn, complete, and resolve workers
  • Read and adjust the per-repository session
  • Receive signals (decisions, warnings, help requests)
  • Stream live events via GET /api/events (Server-Sent Events)

Unlike the one-shot CLI subcommands, the gateway stays running and lets
several worker processes coordinate over time without manual polling.

Quick API reference:
  GET    /health                          liveness check
  GET    /api/repositories                list tracked repositories
  POST   /api/repositories                start tracking a repository
  GET    /api/items                       list spec items
  POST   /api/items                       create a top-level item
  GET    /api/session                     current operator session
  POST   /api/workers                     spawn a worker
  POST   /api/workers/:id/complete        mark done, attempt merge
  GET    /api/signals                     pending advisory signals
  GET    /api/events                      SSE stream of live events`,
	RunE: runGateway,
}

func init() {
	gatewayCmd.Flags().IntVar(&gatewayPort, "port", 0,
		"HTTP port to listen on (default 6080, overrides config)")
	gatewayCmd.Flags().StringVar(&gatewayLogDir, "log-dir", "logs",
		"directory to write gateway logs for later inspection")
}

func runGateway(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gateway gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logFilePath, closeLog, err := setupGatewayFileLogger(gatewayLogDir)
	if err != nil {
		return fmt.Errorf("initialising gateway logger: %w", err)
	}
	defer closeLog()

	if gatewayPort > 0 {
		cfg.Gateway.Port = gatewayPort
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 6080
	}

	db, err := store.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Printf("chkd gateway starting\n")
	fmt.Printf("  API     : http://127.0.0.1:%d\n", cfg.Gateway.Port)
	fmt.Printf("  Events  : http://127.0.0.1:%d/api/events\n", cfg.Gateway.Port)
	fmt.Printf("  Logs    : %s\n\n", logFilePath)
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()

	slog.Info("gateway logger initialised", "file", logFilePath)

	eng := engine.New(cfg, db, clock.Real{})
	gw := gateway.New(cfg, eng)
	return gw.Start(ctx)
}

func setupGatewayFileLogger(logDir string) (string, func(), error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}

	ts := time.Now().UTC().Format("20060102-150405")
	runLogPath := filepath.Join(logDir, fmt.Sprintf("gateway-%s.log", ts))
	runFile, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("opening run log file: %w", err)
	}

	latestPath := filepath.Join(logDir, "gateway.log")
	latestFile, err := os.OpenFile(latestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = runFile.Close()
		return "", nil, fmt.Errorf("opening latest log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, runFile, latestFile), &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})
	slog.SetDefault(slog.New(handler))
	slog.SetLogLoggerLevel(level)

	cleanup := func() {
		_ = latestFile.Close()
		_ = runFile.Close()
	}
	return runLogPath, cleanup, nil
}
