package fixer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/jomarcello/railway-webhook/internal/repository"
)

// maxLogTail bounds how much raw log text is embedded in the prompt.
const maxLogTail = 16 * 1024

// PromptMeta is serialised as YAML frontmatter at the top of the prompt
// artifact so the fix agent (and humans) can identify the run.
type PromptMeta struct {
	RunID        string `yaml:"run_id"`
	DeploymentID string `yaml:"deployment_id,omitempty"`
	ServiceName  string `yaml:"service,omitempty"`
	Repo         string `yaml:"repo,omitempty"`
	GeneratedAt  string `yaml:"generated_at"`

	Workspace *repository.WorkspaceStatus `yaml:"-"`
}

// BuildPrompt writes the remediation prompt artifact and returns its
// path. The artifact lives under dir (the workspace) so the fix agent
// finds it next to the code; an empty dir falls back to the system temp
// directory.
func BuildPrompt(dir string, meta PromptMeta, logs string, errorLines []string, commits []repository.Commit) (string, error) {
	if meta.GeneratedAt == "" {
		meta.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if dir == "" {
		dir = os.TempDir()
	}

	frontmatter, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshalling prompt metadata: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(frontmatter)
	b.WriteString("---\n\n")

	b.WriteString("# Deployment failure remediation\n\n")
	deployment := meta.DeploymentID
	if deployment == "" {
		deployment = "(unknown)"
	}
	fmt.Fprintf(&b, "Deployment %s", deployment)
	if meta.ServiceName != "" {
		fmt.Fprintf(&b, " of service %q", meta.ServiceName)
	}
	b.WriteString(" failed on Railway. Diagnose the failure from the logs below\n")
	b.WriteString("and fix the root cause in this repository. Keep the change minimal.\n\n")

	if meta.Workspace != nil {
		b.WriteString("## Workspace\n\n")
		fmt.Fprintf(&b, "- Path: %s\n", meta.Workspace.Path)
		fmt.Fprintf(&b, "- Branch: %s\n", meta.Workspace.Branch)
		fmt.Fprintf(&b, "- HEAD: %s\n\n", meta.Workspace.Commit)
	}

	if len(errorLines) > 0 {
		b.WriteString("## Extracted errors\n\n```\n")
		for _, line := range errorLines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString("```\n\n")
	}

	if len(commits) > 0 {
		b.WriteString("## Recent commits\n\n")
		for _, c := range commits {
			sha := c.SHA
			if len(sha) > 8 {
				sha = sha[:8]
			}
			fmt.Fprintf(&b, "- %s %s", sha, c.Message)
			if c.Author != "" {
				fmt.Fprintf(&b, " (%s)", c.Author)
			}
			b.WriteByte('\n')
		}
		b.WriteString("\n")
	}

	b.WriteString("## Deployment logs (tail)\n\n```\n")
	b.WriteString(tail(logs, maxLogTail))
	b.WriteString("\n```\n")

	path := filepath.Join(dir, fmt.Sprintf("fix-prompt-%s.md", meta.RunID))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing prompt artifact: %w", err)
	}
	return path, nil
}

// tail returns at most n trailing bytes of s, cut at a line boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[len(s)-n:]
	if i := strings.IndexByte(cut, '\n'); i >= 0 && i+1 < len(cut) {
		cut = cut[i+1:]
	}
	return cut
}
