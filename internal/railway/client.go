// Package railway is a minimal client for the Railway public GraphQL
// API: deployment log retrieval and a bounded reachability probe.
package railway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jomarcello/railway-webhook/internal/config"
)

// pingTimeout bounds the health probe so GET /health never hangs on a
// slow upstream.
const pingTimeout = 5 * time.Second

// Client is an HTTP client for the Railway GraphQL API.
type Client struct {
	http   *http.Client
	apiURL string
	token  string
}

// New returns a Client with a 15-second request timeout.
func New(cfg config.RailwayConfig) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://backboard.railway.app/graphql/v2"
	}
	return &Client{
		http:   &http.Client{Timeout: 15 * time.Second},
		apiURL: apiURL,
		token:  cfg.Token,
	}
}

// DeploymentLogs fetches the most recent log lines for a deployment and
// returns them as one newline-joined string, oldest first.
func (c *Client) DeploymentLogs(ctx context.Context, deploymentID string) (string, error) {
	if strings.TrimSpace(deploymentID) == "" {
		return "", fmt.Errorf("railway: deployment id is required")
	}

	var resp struct {
		DeploymentLogs []logEntry `json:"deploymentLogs"`
	}
	err := c.query(ctx, deploymentLogsQuery, map[string]any{
		"deploymentId": deploymentID,
		"limit":        500,
	}, &resp)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(resp.DeploymentLogs))
	for _, e := range resp.DeploymentLogs {
		if e.Message == "" {
			continue
		}
		lines = append(lines, e.Message)
	}
	return strings.Join(lines, "\n"), nil
}

// Ping checks upstream reachability with a small authenticated query.
// The call is bounded at 5 seconds regardless of the caller's context.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var resp struct {
		Me struct {
			ID string `json:"id"`
		} `json:"me"`
	}
	return c.query(ctx, pingQuery, nil, &resp)
}

const deploymentLogsQuery = `query deploymentLogs($deploymentId: String!, $limit: Int) {
  deploymentLogs(deploymentId: $deploymentId, limit: $limit) {
    timestamp
    severity
    message
  }
}`

const pingQuery = `query { me { id } }`

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// query POSTs a GraphQL document and decodes the "data" object into out.
func (c *Client) query(ctx context.Context, doc string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: doc, Variables: vars})
	if err != nil {
		return fmt.Errorf("railway: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("railway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("railway: query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("railway: query HTTP %d: %s", resp.StatusCode, string(b))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("railway: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("railway: API error: %s", envelope.Errors[0].Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("railway: decode data: %w", err)
		}
	}
	return nil
}
