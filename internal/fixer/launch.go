package fixer

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// CursorLauncher starts the Cursor agent as a detached process. The
// process is not awaited past launch; its exit status is reaped in the
// background and logged only.
type CursorLauncher struct {
	Bin string
}

// NewCursorLauncher returns a launcher for the given binary name or
// path (default "cursor").
func NewCursorLauncher(bin string) *CursorLauncher {
	if bin == "" {
		bin = "cursor"
	}
	return &CursorLauncher{Bin: bin}
}

// Launch starts the fix agent with the workspace and prompt artifact.
// It returns once the process has started; the agent itself runs to
// completion (or process exit) on its own.
func (l *CursorLauncher) Launch(_ context.Context, workspacePath, promptPath string) error {
	path, err := exec.LookPath(l.Bin)
	if err != nil {
		return fmt.Errorf("fix agent binary %q not found: %w", l.Bin, err)
	}

	// Deliberately not CommandContext: the agent must outlive the
	// triggering request and any server shutdown already in flight.
	cmd := exec.Command(path, workspacePath, promptPath) // #nosec G204 -- binary and paths come from operator config
	cmd.Dir = workspacePath
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting fix agent: %w", err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("Fix agent exited with error", "bin", l.Bin, "error", err)
			return
		}
		slog.Info("Fix agent exited", "bin", l.Bin)
	}()
	return nil
}
