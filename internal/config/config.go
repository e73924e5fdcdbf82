package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".railway-autofix"
	DefaultConfigFile = "config.json"
)

// Load reads the config file (if present) and returns a populated Config.
// Environment variables override file values; the deployment env names
// used by the original hosted setup (WEBHOOK_AUTH_TOKEN, PORT,
// RAILWAY_TOKEN, GITHUB_REPO, LOCAL_REPO_PATH) are bound explicitly so
// a config file is never required in production.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvAliases(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file exists but is malformed.
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
		// No config file — env and defaults are enough.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(configPath, data, 0o600)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}
	return os.MkdirAll(filepath.Join(home, DefaultConfigDir), 0o700)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// bindEnvAliases maps the flat env variable names the deployment platform
// sets onto their nested config keys. AutomaticEnv only covers the
// SERVER_PORT-style derived names.
func bindEnvAliases(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT", "SERVER_PORT")
	_ = v.BindEnv("server.auth_token", "WEBHOOK_AUTH_TOKEN")
	_ = v.BindEnv("server.mode", "SERVER_MODE")
	_ = v.BindEnv("railway.token", "RAILWAY_TOKEN")
	_ = v.BindEnv("git.github_repo", "GITHUB_REPO")
	_ = v.BindEnv("git.github_token", "GITHUB_TOKEN")
	_ = v.BindEnv("fixer.local_repo_path", "LOCAL_REPO_PATH")
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", ModeNotify)

	v.SetDefault("railway.api_url", "https://backboard.railway.app/graphql/v2")

	v.SetDefault("fixer.cursor_bin", "cursor")

	v.SetDefault("monitor.expr", "@every 5m")
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Fixer.LocalRepoPath = expandHome(cfg.Fixer.LocalRepoPath, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
