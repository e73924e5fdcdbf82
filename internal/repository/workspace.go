package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// WorkspaceStatus describes the local checkout the fix agent runs in.
type WorkspaceStatus struct {
	Path   string
	Branch string
	Commit string
	Cloned bool // true if Ensure created the checkout
}

// Workspace manages the local repository the fix agent is launched
// against.
type Workspace struct {
	path     string
	cloneURL string
	token    string
}

// NewWorkspace creates a Workspace rooted at path. cloneURL and token
// are only used when the checkout is missing and has to be created.
func NewWorkspace(path, cloneURL, token string) *Workspace {
	return &Workspace{path: path, cloneURL: cloneURL, token: token}
}

// Ensure opens the workspace repository, shallow-cloning it first when
// the path does not contain one yet.
func (w *Workspace) Ensure(ctx context.Context) (*WorkspaceStatus, error) {
	if w.path == "" {
		return nil, fmt.Errorf("workspace path is not configured")
	}

	repo, err := gogit.PlainOpen(w.path)
	if err == nil {
		return w.status(repo, false)
	}
	if !errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("opening workspace %s: %w", w.path, err)
	}
	if w.cloneURL == "" {
		return nil, fmt.Errorf("workspace %s is not a git repository and no clone URL is configured", w.path)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace parent: %w", err)
	}

	cloneOpts := &gogit.CloneOptions{
		URL:   w.cloneURL,
		Depth: 1, // shallow clone for speed
	}
	if w.token != "" {
		cloneOpts.Auth = &githttp.BasicAuth{
			Username: "railway-autofix",
			Password: w.token,
		}
	}

	slog.Info("Cloning workspace repository", "url", w.cloneURL, "dest", w.path)
	repo, err = gogit.PlainCloneContext(ctx, w.path, false, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", w.cloneURL, err)
	}
	return w.status(repo, true)
}

func (w *Workspace) status(repo *gogit.Repository, cloned bool) (*WorkspaceStatus, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD in %s: %w", w.path, err)
	}
	return &WorkspaceStatus{
		Path:   w.path,
		Branch: head.Name().Short(),
		Commit: head.Hash().String(),
		Cloned: cloned,
	}, nil
}
