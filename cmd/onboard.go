package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jomarcello/railway-webhook/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Interactive setup wizard for the webhook gateway",
	Long: `Walks you through configuring railway-autofix:
  - Webhook bearer token (optional — blank runs the gateway open)
  - Operating mode (notify or autofix)
  - Railway API token (required for autofix and log fetching)
  - GitHub repository and token (commit context for fix prompts)
  - Local workspace path for the Cursor agent

Without a Railway token you can still receive and store webhooks in
notify mode. Autofix mode needs the token to fetch deployment logs.`,
	RunE: runOnboard,
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

func runOnboard(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  railway-autofix — Railway deployment webhook gateway"))
	fmt.Println(dimStyle.Render("  Receives Railway webhooks and kicks off Cursor auto-fix runs.\n"))

	// Load existing config or start fresh.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = &config.Config{}
	}

	if err := config.EnsureDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// --- Step 1: Webhook auth ---
	fmt.Println(headerStyle.Render("  Step 1/4 · Webhook Auth (optional)"))
	fmt.Println(dimStyle.Render("  Railway lets you attach a bearer token to webhook deliveries."))
	fmt.Println(dimStyle.Render("  Leave blank to accept unauthenticated requests.\n"))

	authToken := cfg.Server.AuthToken
	port := "8080"
	if cfg.Server.Port != 0 {
		port = strconv.Itoa(cfg.Server.Port)
	}

	authForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Webhook bearer token (leave blank for open mode)").
				Description("Set the same value in the Railway webhook settings under Authorization.").
				Placeholder("(optional)").
				EchoMode(huh.EchoModePassword).
				Value(&authToken),
			huh.NewInput().
				Title("Listen port").
				Validate(func(s string) error {
					_, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil {
						return fmt.Errorf("port must be a number")
					}
					return nil
				}).
				Value(&port),
		),
	)
	if err := authForm.Run(); err != nil {
		return err
	}
	cfg.Server.AuthToken = strings.TrimSpace(authToken)
	cfg.Server.Port, _ = strconv.Atoi(strings.TrimSpace(port))
	if cfg.Server.AuthToken == "" {
		fmt.Println(warnStyle.Render("  Open mode — anyone who can reach the port can POST webhooks.\n"))
	} else {
		fmt.Println(successStyle.Render("  Bearer auth enabled.\n"))
	}

	// --- Step 2: Operating mode ---
	fmt.Println(headerStyle.Render("\n  Step 2/4 · Operating Mode"))

	mode := cfg.Server.Mode
	if mode == "" {
		mode = config.ModeNotify
	}

	modeForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What should happen on deployment.failed?").
				Options(
					huh.NewOption("notify — record the event and send notifications", config.ModeNotify),
					huh.NewOption("autofix — fetch logs and launch a Cursor fix agent", config.ModeAutofix),
				).
				Value(&mode),
		),
	)
	if err := modeForm.Run(); err != nil {
		return err
	}
	cfg.Server.Mode = mode

	// --- Step 3: Railway API ---
	fmt.Println(headerStyle.Render("\n  Step 3/4 · Railway API"))
	if mode == config.ModeAutofix {
		fmt.Println(dimStyle.Render("  Autofix mode requires a token to fetch deployment logs.\n"))
	} else {
		fmt.Println(dimStyle.Render("  Optional in notify mode — enables the upstream health probe.\n"))
	}

	railwayToken := cfg.Railway.Token

	railwayForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Railway API token").
				Description("Create one at railway.app → Account Settings → Tokens.").
				Placeholder("(optional in notify mode)").
				EchoMode(huh.EchoModePassword).
				Value(&railwayToken),
		),
	)
	if err := railwayForm.Run(); err != nil {
		return err
	}
	cfg.Railway.Token = strings.TrimSpace(railwayToken)
	if mode == config.ModeAutofix && cfg.Railway.Token == "" {
		fmt.Println(warnStyle.Render("  No token — 'serve' will refuse to start in autofix mode.\n"))
	}

	// --- Step 4: Repository ---
	fmt.Println(headerStyle.Render("\n  Step 4/4 · Repository (optional)"))
	fmt.Println(dimStyle.Render("  Used to include recent commits in fix prompts and to clone"))
	fmt.Println(dimStyle.Render("  the workspace the Cursor agent works in.\n"))

	githubRepo := cfg.Git.GitHubRepo
	githubToken := cfg.Git.GitHubToken
	localPath := cfg.Fixer.LocalRepoPath

	repoForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub repository (owner/name)").
				Placeholder("acme/payments-service").
				Value(&githubRepo),
			huh.NewInput().
				Title("GitHub token").
				Description("Create a classic token at https://github.com/settings/tokens/new with repo read access.").
				Placeholder("ghp_...").
				EchoMode(huh.EchoModePassword).
				Value(&githubToken),
			huh.NewInput().
				Title("Local workspace path").
				Description("Cloned here on first fix if it does not exist yet.").
				Placeholder("/srv/workspaces/payments-service").
				Value(&localPath),
		),
	)
	if err := repoForm.Run(); err != nil {
		return err
	}
	cfg.Git.GitHubRepo = strings.TrimSpace(githubRepo)
	cfg.Git.GitHubToken = strings.TrimSpace(githubToken)
	cfg.Fixer.LocalRepoPath = strings.TrimSpace(localPath)

	// Save config
	cfgPath, _ := config.ConfigPath(cfgFile)
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("  Setup complete!"))
	fmt.Printf("  Config saved to: %s\n\n", dimStyle.Render(cfgPath))

	fmt.Println(dimStyle.Render("  Next steps:"))
	fmt.Println(dimStyle.Render("    railway-autofix doctor   — verify tokens and workspace"))
	fmt.Println(dimStyle.Render("    railway-autofix serve    — start the webhook gateway"))
	fmt.Println()

	return nil
}
