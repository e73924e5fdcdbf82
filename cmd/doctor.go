package cmd

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/jomarcello/railway-webhook/internal/config"
	"github.com/jomarcello/railway-webhook/internal/railway"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify tokens, workspace, and the fix agent",
	Long: `Checks that the webhook gateway is fully configured: auth token,
Railway API reachability, GitHub repository settings, the local
workspace checkout, and the Cursor binary.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== railway-autofix doctor ===")
	fmt.Println()

	// Webhook auth
	fmt.Print("Webhook auth ............. ")
	if cfg.Server.AuthToken == "" {
		fmt.Println("WARN (open mode — anyone can POST to /webhook; set WEBHOOK_AUTH_TOKEN)")
	} else {
		fmt.Println("OK (bearer token configured)")
	}

	// Operating mode
	fmt.Print("Mode ..................... ")
	mode := cfg.Server.Mode
	if mode == "" {
		mode = config.ModeNotify
	}
	if !config.ValidMode(mode) {
		fmt.Printf("FAIL (invalid mode %q)\n", mode)
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", mode)
	}

	// Railway API
	fmt.Print("Railway API .............. ")
	switch {
	case cfg.Railway.Token == "" && mode == config.ModeAutofix:
		fmt.Println("FAIL (autofix mode needs RAILWAY_TOKEN — serve will refuse to start)")
		allOK = false
	case cfg.Railway.Token == "":
		fmt.Println("WARN (no token — log fetching and health probe disabled)")
	default:
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := railway.New(cfg.Railway).Ping(probeCtx)
		cancel()
		if err != nil {
			fmt.Printf("WARN (token set but probe failed: %s)\n", err)
		} else {
			fmt.Println("OK (reachable)")
		}
	}

	// GitHub repo
	fmt.Print("GitHub repo .............. ")
	switch {
	case cfg.Git.GitHubRepo == "":
		fmt.Println("WARN (GITHUB_REPO not set — prompts will lack commit context)")
	case cfg.Git.GitHubToken == "":
		fmt.Printf("WARN (%s configured but no token — private repos will fail)\n", cfg.Git.GitHubRepo)
	default:
		fmt.Printf("OK (%s)\n", cfg.Git.GitHubRepo)
	}

	// Local workspace
	fmt.Print("Workspace ................ ")
	if cfg.Fixer.LocalRepoPath == "" {
		fmt.Println("WARN (LOCAL_REPO_PATH not set — prompts are written to the temp dir)")
	} else if _, err := gogit.PlainOpen(cfg.Fixer.LocalRepoPath); err != nil {
		fmt.Printf("WARN (%s is not a git repository — it will be cloned on first fix)\n", cfg.Fixer.LocalRepoPath)
	} else {
		fmt.Printf("OK (%s)\n", cfg.Fixer.LocalRepoPath)
	}

	// Cursor binary
	fmt.Print("Cursor ................... ")
	bin := cfg.Fixer.CursorBin
	if bin == "" {
		bin = "cursor"
	}
	if path, err := exec.LookPath(bin); err != nil {
		if mode == config.ModeAutofix {
			fmt.Printf("FAIL (%q not found on PATH)\n", bin)
			allOK = false
		} else {
			fmt.Printf("WARN (%q not found — only matters in autofix mode)\n", bin)
		}
	} else {
		fmt.Printf("OK (%s)\n", path)
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed — the gateway is ready."))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed — run 'railway-autofix onboard' to fix."))
	}

	return nil
}
