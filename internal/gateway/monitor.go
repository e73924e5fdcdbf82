package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jomarcello/railway-webhook/internal/notify"
)

// Monitor probes the Railway API on a cron schedule. It is pure
// observability: transitions are logged, broadcast on /events, and sent
// to the notification channels; request handling is never affected.
type Monitor struct {
	cron      *cron.Cron
	expr      string
	upstream  Pinger
	broadcast func(SSEEvent)
	notifier  *notify.Dispatcher

	mu       sync.Mutex
	wasDown  bool
	lastSeen time.Time
}

func newMonitor(expr string, upstream Pinger, broadcast func(SSEEvent), notifier *notify.Dispatcher) *Monitor {
	return &Monitor{
		cron:      cron.New(),
		expr:      expr,
		upstream:  upstream,
		broadcast: broadcast,
		notifier:  notifier,
	}
}

// Start registers the probe job and starts the cron runner. An invalid
// expression disables the monitor with a warning rather than failing
// gateway startup.
func (m *Monitor) Start() {
	if _, err := m.cron.AddFunc(m.expr, m.check); err != nil {
		slog.Warn("monitor: invalid cron expression, upstream monitor disabled", "expr", m.expr, "error", err)
		return
	}
	m.cron.Start()
	slog.Info("monitor: upstream probe scheduled", "expr", m.expr)
}

// Stop halts the cron runner gracefully.
func (m *Monitor) Stop() { m.cron.Stop() }

func (m *Monitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.upstream.Ping(ctx)
	now := time.Now().UTC()

	m.mu.Lock()
	wasDown := m.wasDown
	m.wasDown = err != nil
	if err == nil {
		m.lastSeen = now
	}
	m.mu.Unlock()

	payload := map[string]any{"ok": err == nil, "at": now.Format(time.RFC3339)}
	if err != nil {
		payload["error"] = err.Error()
	}
	m.broadcast(SSEEvent{Type: "upstream.checked", Payload: payload})

	switch {
	case err != nil && !wasDown:
		slog.Warn("monitor: Railway API became unreachable", "error", err)
		if m.notifier != nil && m.notifier.IsAnyConfigured() {
			m.notifier.Notify(ctx, notify.Event{
				Type:  "upstream_down",
				Title: "Railway API unreachable",
				Body:  err.Error(),
			})
		}
	case err != nil:
		slog.Debug("monitor: Railway API still unreachable", "error", err)
	case wasDown:
		slog.Info("monitor: Railway API reachable again")
	}
}
