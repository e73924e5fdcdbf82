package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jomarcello/railway-webhook/internal/config"
	"github.com/jomarcello/railway-webhook/internal/store"
)

// handleWebhook ingests one Railway deployment notification.
//
// Order matters: the payload is recorded before classification so even
// unknown or half-formed events leave an audit trail, and a
// classification failure after that point cannot lose the history of
// earlier deliveries. Failure events in autofix mode dispatch the
// remediation runner on a detached goroutine; the HTTP response never
// waits for it. Duplicate failure events for the same deployment are
// not deduplicated.
func (gw *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeWebhookBody(r)
	if !ok {
		slog.Warn("Invalid webhook payload - not JSON", "remote", r.RemoteAddr)
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	eventType := stringField(payload, "event")
	slog.Info("Received webhook", "event", eventType, "bytes", approxSize(payload))

	// Store first, classify second.
	gw.store.Append(store.NewRecord(payload))
	gw.broadcaster.send(SSEEvent{Type: "webhook.received", Payload: map[string]any{"event": eventType}})

	if eventType != eventDeploymentFailed {
		slog.Info("Received non-failure event", "event", eventType)
		status, message := "received", fmt.Sprintf("Notification received for event %s", eventType)
		if gw.cfg.Server.Mode == config.ModeAutofix {
			status, message = "ignored", fmt.Sprintf("Ignoring event %s", eventType)
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": status, "message": message})
		return
	}

	deploymentID := nestedStringField(payload, "deployment", "id")
	serviceName := nestedStringField(payload, "service", "name")
	slog.Info("Detected failed deployment", "deployment_id", deploymentID, "service", serviceName)
	gw.broadcaster.send(SSEEvent{Type: eventDeploymentFailed, Payload: map[string]any{
		"deployment_id": deploymentID,
		"service":       serviceName,
	}})
	gw.notifyEvent("deployment_failed",
		fmt.Sprintf("Deployment %s failed", deploymentID),
		fmt.Sprintf("Railway reported a failed deployment for service %q.", serviceName),
		deploymentID, serviceName)

	if gw.cfg.Server.Mode != config.ModeAutofix {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "received",
			"message": fmt.Sprintf("Notification received for failed deployment %s", deploymentID),
		})
		return
	}

	// Fire-and-forget: the run outlives this request and its outcome is
	// observability-only.
	gw.fixer.Start(deploymentID, serviceName, "")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "processing",
		"message": fmt.Sprintf("Cursor auto-fix started for deployment %s", deploymentID),
	})
}

// decodeWebhookBody parses the request body as a JSON object. Missing
// bodies, malformed JSON, non-object documents, and non-JSON content
// types all count as invalid.
func decodeWebhookBody(r *http.Request) (map[string]any, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return nil, false
	}
	if r.Body == nil {
		return nil, false
	}
	var payload map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&payload); err != nil {
		return nil, false
	}
	if payload == nil {
		return nil, false
	}
	// One document per request: trailing content is malformed.
	if dec.More() {
		return nil, false
	}
	return payload, true
}

// stringField returns payload[key] when it is a string, else "".
func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// nestedStringField returns payload[outer][inner] when the path exists
// and holds a string; any missing or mistyped step yields "". Payloads
// are never rejected for missing optional fields.
func nestedStringField(payload map[string]any, outer, inner string) string {
	obj, ok := payload[outer].(map[string]any)
	if !ok {
		return ""
	}
	return stringField(obj, inner)
}

func approxSize(payload map[string]any) int {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return len(b)
}
