package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chkdhq/chkd/internal/config"
	"github.com/chkdhq/chkd/internal/engine"
)

// Gateway is the long-running daemon that combines:
//   - the coordination Engine (items, sessions, workers, merges, signals)
//   - an optional cron fetcher (periodic `git fetch` per repo)
//   - a REST + SSE HTTP server (control plane for operators)
type Gateway struct {
	cfg         *config.Config
	eng         *engine.Engine
	fetcher     *fetcher
	broadcaster *Broadcaster

	mu        sync.RWMutex
	startedAt time.Time
}

// New creates a Gateway around eng. Call Start to begin serving.
func New(cfg *config.Config, eng *engine.Engine) *Gateway {
	b := newBroadcaster()
	gw := &Gateway{
		cfg:         cfg,
		eng:         eng,
		broadcaster: b,
	}
	gw.fetcher = newFetcher(eng, b.send)
	return gw
}

// Start runs the gateway until ctx is cancelled. It:
//  1. Starts the engine's heartbeat sweeper
//  2. Starts the cron fetcher, if a fetch schedule is configured
//  3. Binds the HTTP server (blocks until shutdown)
func (gw *Gateway) Start(ctx context.Context) error {
	port := gw.cfg.Gateway.Port
	if port == 0 {
		port = 6080
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	gw.mu.Lock()
	gw.startedAt = time.Now()
	gw.mu.Unlock()

	gw.eng.Start(ctx)

	if err := gw.fetcher.Start(ctx); err != nil {
		return fmt.Errorf("starting fetcher: %w", err)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: buildHandler(gw),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway: serve: %w", err)
	}
	return nil
}
