package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jomarcello/railway-webhook/internal/notify"
)

// buildHandler wires all REST and SSE routes onto a new ServeMux.
// Uses Go 1.22+ method-prefixed patterns ("GET /path", "POST /path").
func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	// Liveness / status (unauthenticated)
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /api/status", gw.handleStatus)

	// Notification log
	mux.HandleFunc("GET /notifications", gw.requireAuth(gw.handleListNotifications))
	mux.HandleFunc("POST /clear-notifications", gw.requireAuth(gw.handleClearNotifications))

	// Webhook ingestion + manual trigger
	mux.HandleFunc("POST /webhook", gw.requireAuth(gw.handleWebhook))
	mux.HandleFunc("POST /manual-fix", gw.requireAuth(gw.handleManualFix))

	// Server-Sent Events stream
	mux.HandleFunc("GET /events", gw.requireAuth(gw.handleEvents))

	return recoverMiddleware(mux)
}

// recoverMiddleware converts handler panics into 500 responses so one
// bad request can never take the process down.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("gateway: handler panic", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, fmt.Sprint(rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- handlers ---

// handleHealth reports process liveness. The upstream probe only
// enriches the message: a dead Railway API still yields "healthy",
// because this endpoint answers "is the relay up", not "is Railway up".
func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	message := "Webhook gateway is running"
	if gw.upstream != nil {
		if err := gw.upstream.Ping(r.Context()); err != nil {
			slog.Warn("Upstream probe failed during health check", "error", err)
			message = "Webhook gateway is running; warning: Railway API unreachable"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"timestamp":      float64(time.Now().UnixNano()) / float64(time.Second),
		"message":        message,
		"uptime_seconds": int64(time.Since(gw.startedAt).Seconds()),
	})
}

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gw.currentStatus())
}

func (gw *Gateway) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	records, count := gw.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": records,
		"count":         count,
	})
}

func (gw *Gateway) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	cleared := gw.store.Clear()
	slog.Info("Cleared notification log", "count", cleared)
	gw.broadcaster.send(SSEEvent{Type: "notifications.cleared", Payload: map[string]any{"count": cleared}})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Cleared %d notifications", cleared),
	})
}

// handleManualFix starts a remediation run from operator-supplied
// input. At least one of deployment_id and logs is required; the
// response precedes run completion.
func (gw *Gateway) handleManualFix(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeploymentID string `json:"deployment_id"`
		Logs         string `json:"logs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.DeploymentID) == "" && strings.TrimSpace(req.Logs) == "" {
		writeError(w, http.StatusBadRequest, "deployment_id or logs is required")
		return
	}

	slog.Info("Manual fix requested", "deployment_id", req.DeploymentID, "has_logs", req.Logs != "")
	gw.fixer.Start(req.DeploymentID, "", req.Logs)

	target := req.DeploymentID
	if target == "" {
		target = "provided logs"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "processing",
		"message": fmt.Sprintf("Cursor auto-fix started for %s", target),
	})
}

// handleEvents streams SSE to the client. Each frame is a JSON SSEEvent.
// Clients receive a "connected" event immediately, then live updates.
func (gw *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering if behind a proxy

	id, ch := gw.broadcaster.subscribe()
	defer gw.broadcaster.unsubscribe(id)

	connected, _ := encodeFrame(SSEEvent{Type: "connected", Payload: gw.currentStatus()})
	_, _ = w.Write(connected)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}

// notifyEvent forwards an event to the outbound channels when they are
// configured. Fire-and-forget with a bounded send budget.
func (gw *Gateway) notifyEvent(eventType, title, body, deploymentID, service string) {
	if gw.notifier == nil || !gw.notifier.IsAnyConfigured() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		gw.notifier.Notify(ctx, notify.Event{
			Type:         eventType,
			Title:        title,
			Body:         body,
			DeploymentID: deploymentID,
			Service:      service,
		})
	}()
}
