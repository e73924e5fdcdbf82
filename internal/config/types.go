package config

// Config is the root configuration structure for railway-autofix.
// Serialised to ~/.railway-autofix/config.json.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"  json:"server"`
	Railway RailwayConfig `mapstructure:"railway" json:"railway"`
	Git     GitConfig     `mapstructure:"git"     json:"git"`
	Fixer   FixerConfig   `mapstructure:"fixer"   json:"fixer"`
	Monitor MonitorConfig `mapstructure:"monitor" json:"monitor"`
	Notify  NotifyConfig  `mapstructure:"notify"  json:"notify"`
}

// ServerConfig controls the webhook gateway HTTP server.
type ServerConfig struct {
	// Port is the listen port (env: PORT, default 8080).
	Port int `mapstructure:"port" json:"port"`
	// AuthToken is the shared webhook secret (env: WEBHOOK_AUTH_TOKEN).
	// When empty the gateway runs in open mode and every request is
	// authorized. That is a deliberate trade-off for local development;
	// doctor warns about it.
	AuthToken string `mapstructure:"auth_token" json:"auth_token"`
	// Mode is "notify" (record and classify only, default) or "autofix"
	// (additionally launch the Cursor remediation workflow on
	// deployment.failed events). Env: SERVER_MODE.
	Mode string `mapstructure:"mode" json:"mode"`
}

// RailwayConfig holds credentials for the upstream Railway API.
type RailwayConfig struct {
	// Token is the Railway API token (env: RAILWAY_TOKEN). Required in
	// autofix mode; serve refuses to start without it.
	Token string `mapstructure:"token" json:"token"`
	// APIURL overrides the Railway GraphQL endpoint (tests, proxies).
	APIURL string `mapstructure:"api_url" json:"api_url"`
}

// GitConfig identifies the repository the fix agent works on.
type GitConfig struct {
	// GitHubRepo is "owner/name" (env: GITHUB_REPO).
	GitHubRepo string `mapstructure:"github_repo" json:"github_repo"`
	// GitHubToken authenticates commit lookups and workspace clones.
	GitHubToken string `mapstructure:"github_token" json:"github_token"`
}

// FixerConfig controls the local remediation workflow.
type FixerConfig struct {
	// LocalRepoPath is the workspace the fix agent is launched against
	// (env: LOCAL_REPO_PATH).
	LocalRepoPath string `mapstructure:"local_repo_path" json:"local_repo_path"`
	// CursorBin is the fix agent binary name or path (default "cursor").
	CursorBin string `mapstructure:"cursor_bin" json:"cursor_bin"`
}

// MonitorConfig controls the periodic upstream health probe.
type MonitorConfig struct {
	// Expr is a robfig/cron expression ("@every 5m" default). Empty
	// disables the monitor.
	Expr string `mapstructure:"expr" json:"expr"`
}

// NotifyConfig controls outbound notification channels.
type NotifyConfig struct {
	// Events filters which event types are sent. Empty uses the
	// built-in defaults.
	Events   []string             `mapstructure:"events"   json:"events"`
	Slack    SlackNotifyConfig    `mapstructure:"slack"    json:"slack"`
	Telegram TelegramNotifyConfig `mapstructure:"telegram" json:"telegram"`
	Email    EmailNotifyConfig    `mapstructure:"email"    json:"email"`
	Webhook  WebhookNotifyConfig  `mapstructure:"webhook"  json:"webhook"`
}

// SlackNotifyConfig configures a Slack incoming webhook.
type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// TelegramNotifyConfig configures a Telegram bot channel.
type TelegramNotifyConfig struct {
	BotToken string `mapstructure:"bot_token" json:"bot_token"`
	ChatID   string `mapstructure:"chat_id"   json:"chat_id"`
}

// EmailNotifyConfig configures SMTP delivery.
type EmailNotifyConfig struct {
	SMTPHost string `mapstructure:"smtp_host" json:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" json:"smtp_port"`
	From     string `mapstructure:"from"      json:"from"`
	To       string `mapstructure:"to"        json:"to"`
	Username string `mapstructure:"username"  json:"username"`
	Password string `mapstructure:"password"  json:"password"`
}

// WebhookNotifyConfig configures a generic outbound JSON webhook.
type WebhookNotifyConfig struct {
	URL string `mapstructure:"url" json:"url"`
}

// Modes accepted by ServerConfig.Mode.
const (
	ModeNotify  = "notify"
	ModeAutofix = "autofix"
)

// ValidMode reports whether mode is an accepted operating mode.
func ValidMode(mode string) bool {
	return mode == ModeNotify || mode == ModeAutofix
}
