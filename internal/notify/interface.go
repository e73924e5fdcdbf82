package notify

import "context"

// Event represents a notification event from the webhook gateway.
type Event struct {
	Type         string // "deployment_failed" | "fix_started" | "fix_failed" | "upstream_down"
	Title        string
	Body         string
	DeploymentID string
	Service      string
	Metadata     map[string]any // extra structured data
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
