package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/jomarcello/railway-webhook/internal/config"
)

// Commit is a condensed view of a repository commit, used as context in
// remediation prompts.
type Commit struct {
	SHA     string
	Message string
	Author  string
	When    time.Time
}

// GitHub looks up commit history for the configured repository.
type GitHub struct {
	client *gogithub.Client
	owner  string
	repo   string
}

// NewGitHub creates a GitHub client from the given configuration.
// The repo must be "owner/name".
func NewGitHub(cfg config.GitConfig) (*GitHub, error) {
	owner, repo, err := splitRepo(cfg.GitHubRepo)
	if err != nil {
		return nil, err
	}

	httpClient := oauth2.NewClient(context.Background(), nil)
	if cfg.GitHubToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	return &GitHub{
		client: gogithub.NewClient(httpClient),
		owner:  owner,
		repo:   repo,
	}, nil
}

// FullName returns "owner/name".
func (g *GitHub) FullName() string { return g.owner + "/" + g.repo }

// RecentCommits returns up to limit commits from the default branch,
// newest first.
func (g *GitHub) RecentCommits(ctx context.Context, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = 10
	}
	ghCommits, _, err := g.client.Repositories.ListCommits(ctx, g.owner, g.repo, &gogithub.CommitsListOptions{
		ListOptions: gogithub.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, fmt.Errorf("listing commits for %s/%s: %w", g.owner, g.repo, err)
	}

	commits := make([]Commit, 0, len(ghCommits))
	for _, c := range ghCommits {
		if c == nil || c.Commit == nil {
			continue
		}
		commit := Commit{
			SHA:     c.GetSHA(),
			Message: firstLine(c.Commit.GetMessage()),
		}
		if a := c.Commit.GetAuthor(); a != nil {
			commit.Author = a.GetName()
			commit.When = a.GetDate().Time
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// CloneURL returns the HTTPS clone URL for the configured repository.
func (g *GitHub) CloneURL() string {
	return fmt.Sprintf("https://github.com/%s/%s.git", g.owner, g.repo)
}

func splitRepo(full string) (owner, repo string, err error) {
	parts := strings.SplitN(strings.TrimSpace(full), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GitHub repo %q (expected owner/name)", full)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
