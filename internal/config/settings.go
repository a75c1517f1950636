package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

const (
	// EnvGitHubToken takes precedence over EnvGitHubTokenFallback.
	EnvGitHubToken         = "ZAP_GITHUB_TOKEN"
	EnvGitHubTokenFallback = "GITHUB_TOKEN"

	// EnvHTTPTimeout overrides http_timeout, e.g. "45s".
	EnvHTTPTimeout = "ZAP_HTTP_TIMEOUT"

	DefaultHTTPTimeout = 30 * time.Second
)

// IntegrateMode controls whether install asks before desktop integration.
type IntegrateMode string

const (
	IntegrateAsk    IntegrateMode = "ask"
	IntegrateAlways IntegrateMode = "always"
	IntegrateNever  IntegrateMode = "never"
)

// Settings are user preferences read from config.toml and the environment.
type Settings struct {
	GitHubToken string
	// HTTPTimeout bounds connecting and waiting for response headers. It does
	// not bound the body transfer, which can take arbitrarily long for large bundles.
	HTTPTimeout time.Duration
	Integrate   IntegrateMode
}

type settingsFile struct {
	GitHubToken string `toml:"github_token"`
	HTTPTimeout string `toml:"http_timeout"`
	Integrate   string `toml:"integrate"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: DefaultHTTPTimeout,
		Integrate:   IntegrateAsk,
	}
}

// SettingsFile is the location of config.toml.
func SettingsFile() string {
	return filepath.Join(xdg.ConfigHome, appDirName, "config.toml")
}

// LoadSettings reads path (a missing file is not an error) and applies
// environment overrides from getenv.
func LoadSettings(path string, getenv func(string) string) (Settings, error) {
	settings := DefaultSettings()

	var file settingsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return settings, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if token := strings.TrimSpace(file.GitHubToken); token != "" {
		settings.GitHubToken = token
	}
	if timeout := strings.TrimSpace(file.HTTPTimeout); timeout != "" {
		d, err := parseTimeout(timeout)
		if err != nil {
			return settings, fmt.Errorf("%s: http_timeout: %w", path, err)
		}
		settings.HTTPTimeout = d
	}
	if mode := strings.TrimSpace(file.Integrate); mode != "" {
		m, err := parseIntegrateMode(mode)
		if err != nil {
			return settings, fmt.Errorf("%s: integrate: %w", path, err)
		}
		settings.Integrate = m
	}

	if token := tokenFromEnv(getenv); token != "" {
		settings.GitHubToken = token
	}
	if timeout := strings.TrimSpace(getenv(EnvHTTPTimeout)); timeout != "" {
		d, err := parseTimeout(timeout)
		if err != nil {
			return settings, fmt.Errorf("%s: %w", EnvHTTPTimeout, err)
		}
		settings.HTTPTimeout = d
	}

	return settings, nil
}

// LoadDefaultSettings loads SettingsFile with the process environment.
func LoadDefaultSettings() (Settings, error) {
	return LoadSettings(SettingsFile(), os.Getenv)
}

func tokenFromEnv(getenv func(string) string) string {
	if tok := strings.TrimSpace(getenv(EnvGitHubToken)); tok != "" {
		return tok
	}
	return strings.TrimSpace(getenv(EnvGitHubTokenFallback))
}

func parseTimeout(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", value)
	}
	return d, nil
}

func parseIntegrateMode(value string) (IntegrateMode, error) {
	switch mode := IntegrateMode(strings.ToLower(value)); mode {
	case IntegrateAsk, IntegrateAlways, IntegrateNever:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want ask, always or never)", value)
	}
}
