// Package fixer runs the remediation workflow triggered by failed
// deployments: fetch logs, extract errors, build a prompt artifact, and
// launch the Cursor fix agent against the local workspace.
package fixer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jomarcello/railway-webhook/internal/config"
	"github.com/jomarcello/railway-webhook/internal/repository"
)

// LogFetcher retrieves raw deployment logs from the upstream provider.
type LogFetcher interface {
	DeploymentLogs(ctx context.Context, deploymentID string) (string, error)
}

// CommitLister provides recent repository commits for prompt context.
type CommitLister interface {
	RecentCommits(ctx context.Context, limit int) ([]repository.Commit, error)
}

// WorkspacePreparer readies the local checkout the fix agent runs in.
type WorkspacePreparer interface {
	Ensure(ctx context.Context) (*repository.WorkspaceStatus, error)
}

// Launcher starts the external fix agent process.
type Launcher interface {
	Launch(ctx context.Context, workspacePath, promptPath string) error
}

// Request identifies one remediation run. At least one of DeploymentID
// and Logs must be set; when Logs is empty the runner fetches them.
type Request struct {
	DeploymentID string
	ServiceName  string
	Logs         string
}

// Runner wires the four collaborators together. Runs are transient:
// nothing about a run is retained beyond its log lines, failures are
// never retried, and concurrent runs for the same deployment are not
// deduplicated.
type Runner struct {
	cfg       config.FixerConfig
	repo      string
	logs      LogFetcher
	commits   CommitLister
	workspace WorkspacePreparer
	launcher  Launcher
	onEvent   func(eventType string, payload map[string]any)
}

// Option configures optional Runner collaborators.
type Option func(*Runner)

// WithCommits supplies recent-commit context for prompts.
func WithCommits(c CommitLister) Option {
	return func(r *Runner) { r.commits = c }
}

// WithWorkspace supplies workspace preparation before launch.
func WithWorkspace(w WorkspacePreparer) Option {
	return func(r *Runner) { r.workspace = w }
}

// WithEvents registers a callback invoked on run lifecycle transitions
// ("fix.started", "fix.completed").
func WithEvents(fn func(eventType string, payload map[string]any)) Option {
	return func(r *Runner) { r.onEvent = fn }
}

// NewRunner creates a Runner. logs and launcher are required; repo is
// the "owner/name" used in prompt metadata.
func NewRunner(cfg config.FixerConfig, repo string, logs LogFetcher, launcher Launcher, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, repo: repo, logs: logs, launcher: launcher}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start dispatches a remediation run on a detached goroutine and
// returns immediately. The run outlives the originating HTTP request;
// its outcome is observable only through logs and events.
func (r *Runner) Start(deploymentID, serviceName, logs string) {
	go r.Run(context.Background(), Request{
		DeploymentID: deploymentID,
		ServiceName:  serviceName,
		Logs:         logs,
	})
}

// Run executes one remediation attempt and reports whether the fix
// agent was launched. Every failure is logged and converted to false;
// nothing propagates, because no caller is waiting.
func (r *Runner) Run(ctx context.Context, req Request) bool {
	runID := uuid.NewString()
	log := slog.With("run_id", runID, "deployment_id", req.DeploymentID, "service", req.ServiceName)

	if strings.TrimSpace(req.DeploymentID) == "" && strings.TrimSpace(req.Logs) == "" {
		log.Warn("Remediation run rejected: neither deployment id nor logs provided")
		return false
	}

	r.event("fix.started", map[string]any{"run_id": runID, "deployment_id": req.DeploymentID})
	ok := r.run(ctx, log, runID, req)
	r.event("fix.completed", map[string]any{"run_id": runID, "deployment_id": req.DeploymentID, "ok": ok})
	return ok
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, runID string, req Request) bool {
	logs := req.Logs
	if logs == "" {
		fetched, err := r.logs.DeploymentLogs(ctx, req.DeploymentID)
		if err != nil {
			log.Error("Fetching deployment logs failed", "error", err)
			return false
		}
		logs = fetched
	}
	if strings.TrimSpace(logs) == "" {
		// No partial remediation without anything to work from.
		log.Warn("No logs available for deployment, aborting remediation")
		return false
	}

	errorLines := ExtractErrors(logs)
	log.Info("Extracted error lines from deployment logs", "errors", len(errorLines), "log_bytes", len(logs))

	workspacePath := r.cfg.LocalRepoPath
	var ws *repository.WorkspaceStatus
	if r.workspace != nil {
		prepared, err := r.workspace.Ensure(ctx)
		if err != nil {
			log.Error("Preparing workspace failed", "error", err)
			return false
		}
		ws = prepared
		workspacePath = prepared.Path
	}

	var commits []repository.Commit
	if r.commits != nil {
		recent, err := r.commits.RecentCommits(ctx, 10)
		if err != nil {
			// Commit context is best-effort; the prompt is still useful without it.
			log.Warn("Fetching recent commits failed", "error", err)
		} else {
			commits = recent
		}
	}

	promptPath, err := BuildPrompt(workspacePath, PromptMeta{
		RunID:        runID,
		DeploymentID: req.DeploymentID,
		ServiceName:  req.ServiceName,
		Repo:         r.repo,
		Workspace:    ws,
	}, logs, errorLines, commits)
	if err != nil {
		log.Error("Building remediation prompt failed", "error", err)
		return false
	}

	if err := r.launcher.Launch(ctx, workspacePath, promptPath); err != nil {
		log.Error("Launching fix agent failed", "error", err, "prompt", promptPath)
		return false
	}

	log.Info("Fix agent launched", "prompt", promptPath, "workspace", workspacePath)
	return true
}

func (r *Runner) event(eventType string, payload map[string]any) {
	if r.onEvent != nil {
		r.onEvent(eventType, payload)
	}
}
