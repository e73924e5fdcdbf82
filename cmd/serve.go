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

	"github.com/spf13/cobra"

	"github.com/jomarcello/railway-webhook/internal/config"
	"github.com/jomarcello/railway-webhook/internal/fixer"
	"github.com/jomarcello/railway-webhook/internal/gateway"
	"github.com/jomarcello/railway-webhook/internal/notify"
	"github.com/jomarcello/railway-webhook/internal/railway"
	"github.com/jomarcello/railway-webhook/internal/repository"
)

var (
	servePort   int
	serveMode   string
	serveLogDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook gateway daemon",
	Long: `Starts the webhook gateway: a long-running daemon that receives
Railway deployment notifications over HTTP and keeps the last 50 of them
in memory (restart loses history).

Operating modes:
  notify    record and classify notifications only (default)
  autofix   additionally launch the Cursor remediation workflow when a
            deployment.failed event arrives (requires RAILWAY_TOKEN)

Requests race freely: two failure events for the same deployment arriving
close together start two overlapping remediation runs. The gateway does
not deduplicate or serialize them.

Quick API reference:
  GET  /health               liveness (never fails closed)
  GET  /api/status           gateway + process status snapshot
  GET  /notifications        list stored notifications
  POST /webhook              Railway deployment webhook
  POST /manual-fix           trigger a remediation run by hand
  POST /clear-notifications  empty the notification log
  GET  /events               SSE stream of live gateway events

All routes except /health and /api/status require
"Authorization: Bearer <WEBHOOK_AUTH_TOKEN>" when a token is configured;
without one the gateway runs open (fine locally, not on the internet).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port to listen on (default 8080, overrides config)")
	serveCmd.Flags().StringVar(&serveMode, "mode", "",
		"operating mode: notify or autofix (overrides config)")
	serveCmd.Flags().StringVar(&serveLogDir, "log-dir", "logs",
		"directory to write gateway logs for later inspection")
}

func runServe(cmd *cobra.Command, args []string) error {
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
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveMode != "" {
		cfg.Server.Mode = serveMode
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = config.ModeNotify
	}
	if !config.ValidMode(cfg.Server.Mode) {
		return fmt.Errorf("invalid mode %q (valid: notify, autofix)", cfg.Server.Mode)
	}
	// The one fatal startup condition: half-configured autofix would
	// accept failure events it can never remediate.
	if cfg.Server.Mode == config.ModeAutofix && cfg.Railway.Token == "" {
		return fmt.Errorf("autofix mode requires a Railway API token (set RAILWAY_TOKEN or railway.token)")
	}

	logFilePath, closeLog, err := setupServeFileLogger(serveLogDir)
	if err != nil {
		return fmt.Errorf("initialising gateway logger: %w", err)
	}
	defer closeLog()

	rw := railway.New(cfg.Railway)
	notifier := notify.NewDispatcher(cfg.Notify)

	runnerOpts := []fixer.Option{}
	repoName := cfg.Git.GitHubRepo
	if repoName != "" {
		gh, err := repository.NewGitHub(cfg.Git)
		if err != nil {
			slog.Warn("GitHub client disabled", "error", err)
		} else {
			repoName = gh.FullName() // normalized owner/name
			runnerOpts = append(runnerOpts, fixer.WithCommits(gh))
			if cfg.Fixer.LocalRepoPath != "" {
				ws := repository.NewWorkspace(cfg.Fixer.LocalRepoPath, gh.CloneURL(), cfg.Git.GitHubToken)
				runnerOpts = append(runnerOpts, fixer.WithWorkspace(ws))
			}
		}
	}

	launcher := fixer.NewCursorLauncher(cfg.Fixer.CursorBin)
	var gw *gateway.Gateway
	runnerOpts = append(runnerOpts, fixer.WithEvents(func(eventType string, payload map[string]any) {
		if gw != nil {
			gw.Broadcast(eventType, payload)
		}
		if eventType == "fix.completed" && payload["ok"] == false && notifier.IsAnyConfigured() {
			deploymentID, _ := payload["deployment_id"].(string)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				notifier.Notify(ctx, notify.Event{
					Type:         "fix_failed",
					Title:        "Auto-fix run failed",
					Body:         "The remediation run did not reach a Cursor launch. See gateway logs.",
					DeploymentID: deploymentID,
					Metadata:     payload,
				})
			}()
		}
	}))
	runner := fixer.NewRunner(cfg.Fixer, repoName, rw, launcher, runnerOpts...)
	gw = gateway.New(cfg, runner, rw, notifier)

	fmt.Printf("railway-autofix gateway starting\n")
	fmt.Printf("  Mode  : %s\n", cfg.Server.Mode)
	fmt.Printf("  API   : http://127.0.0.1:%d\n", cfg.Server.Port)
	fmt.Printf("  Auth  : %s\n", authSummary(cfg.Server.AuthToken))
	fmt.Printf("  Logs  : %s\n\n", logFilePath)
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()

	slog.Info("gateway logger initialised", "file", logFilePath)
	return gw.Start(ctx)
}

func authSummary(token string) string {
	if token == "" {
		return "open mode (no WEBHOOK_AUTH_TOKEN set)"
	}
	return "bearer token required"
}

func setupServeFileLogger(logDir string) (string, func(), error) {
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
