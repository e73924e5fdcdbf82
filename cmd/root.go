package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "railway-autofix",
	Short: "Railway deployment webhook gateway with Cursor auto-fix",
	Long: `railway-autofix receives deployment-status webhooks from Railway,
keeps a bounded log of recent notifications, and — in auto-fix mode —
reacts to failed deployments by fetching the deployment logs, building a
remediation prompt, and launching the Cursor agent against a local
checkout of your repository.

Get started:
  railway-autofix onboard   Interactive setup wizard
  railway-autofix doctor    Verify tokens, workspace, and the fix agent
  railway-autofix serve     Start the webhook gateway daemon`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.railway-autofix/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		serveCmd,
		doctorCmd,
		onboardCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
