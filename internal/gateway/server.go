// Package gateway is the webhook relay daemon: an HTTP surface over the
// bounded notification store, plus the asynchronous remediation
// dispatch for failed deployments.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/jomarcello/railway-webhook/internal/config"
	"github.com/jomarcello/railway-webhook/internal/notify"
	"github.com/jomarcello/railway-webhook/internal/store"
)

// FixStarter dispatches a remediation run on a detached execution path.
// Start must return immediately; the run's outcome is never surfaced to
// the gateway.
type FixStarter interface {
	Start(deploymentID, serviceName, logs string)
}

// Pinger probes upstream reachability. Used by GET /health, doctor, and
// the cron monitor; a probe failure never fails a request.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Gateway is the long-running webhook relay daemon.
type Gateway struct {
	cfg         *config.Config
	store       *store.Store
	fixer       FixStarter
	upstream    Pinger
	notifier    *notify.Dispatcher
	broadcaster *Broadcaster
	monitor     *Monitor
	startedAt   time.Time
}

// New creates a Gateway. Call Start() to begin serving. upstream and
// notifier may be nil, disabling the health probe enrichment and
// outbound notifications respectively.
func New(cfg *config.Config, fixer FixStarter, upstream Pinger, notifier *notify.Dispatcher) *Gateway {
	// Without a Railway token every probe is unauthenticated and can
	// only fail; treat the upstream as absent so /health answers
	// instantly and the cron monitor never starts.
	if cfg.Railway.Token == "" {
		upstream = nil
	}
	gw := &Gateway{
		cfg:         cfg,
		store:       store.New(),
		fixer:       fixer,
		upstream:    upstream,
		notifier:    notifier,
		broadcaster: newBroadcaster(),
		startedAt:   time.Now(),
	}
	if cfg.Monitor.Expr != "" && upstream != nil {
		gw.monitor = newMonitor(cfg.Monitor.Expr, upstream, gw.broadcaster.send, notifier)
	}
	return gw
}

// Store exposes the notification store (tests, status).
func (gw *Gateway) Store() *store.Store { return gw.store }

// Broadcast publishes an SSE event to all /events subscribers. The
// fixer's lifecycle callback is wired here from cmd/serve.
func (gw *Gateway) Broadcast(eventType string, payload map[string]any) {
	gw.broadcaster.send(SSEEvent{Type: eventType, Payload: payload})
}

// Start runs the gateway until ctx is cancelled. It starts the upstream
// monitor, binds the HTTP server, and shuts down gracefully with a
// 5-second drain budget.
func (gw *Gateway) Start(ctx context.Context) error {
	port := gw.cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)

	if gw.monitor != nil {
		gw.monitor.Start()
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: buildHandler(gw),
	}

	go func() {
		<-ctx.Done()
		if gw.monitor != nil {
			gw.monitor.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", addr, "mode", gw.cfg.Server.Mode, "open_mode", gw.cfg.Server.AuthToken == "")
	gw.broadcaster.send(SSEEvent{
		Type:    "gateway.started",
		Payload: map[string]string{"addr": addr, "mode": gw.cfg.Server.Mode},
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// currentStatus assembles the /api/status snapshot. Process stats are
// best-effort; a gopsutil failure just leaves them zero.
func (gw *Gateway) currentStatus() Status {
	s := Status{
		Mode:          gw.cfg.Server.Mode,
		OpenMode:      gw.cfg.Server.AuthToken == "",
		Notifications: gw.store.Len(),
		UptimeSeconds: int64(time.Since(gw.startedAt).Seconds()),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			s.MemoryRSSMB = float64(mem.RSS) / (1024 * 1024)
		}
		if fds, err := proc.NumFDs(); err == nil {
			s.OpenFDs = fds
		}
	}
	return s
}
