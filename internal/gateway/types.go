package gateway

// SSEEvent is one frame on the GET /events stream.
type SSEEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Status is the snapshot served by GET /api/status.
type Status struct {
	Mode          string  `json:"mode"`
	OpenMode      bool    `json:"open_mode"`
	Notifications int     `json:"notifications"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	MemoryRSSMB   float64 `json:"memory_rss_mb,omitempty"`
	OpenFDs       int32   `json:"open_fds,omitempty"`
}

// Event types classified by the webhook dispatcher.
const eventDeploymentFailed = "deployment.failed"
