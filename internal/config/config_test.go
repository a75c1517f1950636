package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolvePathsDefaults(t *testing.T) {
	home := "/home/alice"

	paths := ResolvePaths(home)

	root := filepath.Join(home, ".local", "share", "zap")
	if paths.Root != root {
		t.Fatalf("Root = %q", paths.Root)
	}
	if paths.IndexDir != filepath.Join(root, "index") {
		t.Fatalf("IndexDir = %q", paths.IndexDir)
	}
	if paths.AppImagesDir != filepath.Join(root, "appimages") {
		t.Fatalf("AppImagesDir = %q", paths.AppImagesDir)
	}
	if paths.DesktopsDir != filepath.Join(root, "desktops") {
		t.Fatalf("DesktopsDir = %q", paths.DesktopsDir)
	}
	if paths.IconsDir != filepath.Join(root, "icons") {
		t.Fatalf("IconsDir = %q", paths.IconsDir)
	}
	if paths.LocalBinDir != filepath.Join(home, ".local", "bin") {
		t.Fatalf("LocalBinDir = %q", paths.LocalBinDir)
	}
	if paths.LocalApplicationsDir != filepath.Join(home, ".local", "share", "applications") {
		t.Fatalf("LocalApplicationsDir = %q", paths.LocalApplicationsDir)
	}
}

func TestPathsPerAppFiles(t *testing.T) {
	paths := ResolvePaths("/home/alice")

	if got := paths.IndexFile("myapp"); got != "/home/alice/.local/share/zap/index/myapp.json" {
		t.Fatalf("IndexFile = %q", got)
	}
	if got := paths.IconFile("myapp"); got != "/home/alice/.local/share/zap/icons/myapp.png" {
		t.Fatalf("IconFile = %q", got)
	}
	if got := paths.SymlinkFile("myapp"); got != "/home/alice/.local/bin/myapp" {
		t.Fatalf("SymlinkFile = %q", got)
	}

	entries := paths.DesktopEntries("myapp")
	if len(entries) != 2 {
		t.Fatalf("DesktopEntries returned %d paths, want 2", len(entries))
	}
	if entries[0] != "/home/alice/.local/share/zap/desktops/myapp.desktop" {
		t.Fatalf("DesktopEntries[0] = %q", entries[0])
	}
	if entries[1] != "/home/alice/.local/share/applications/myapp.desktop" {
		t.Fatalf("DesktopEntries[1] = %q", entries[1])
	}
}

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "config.toml"), func(string) string { return "" })
	if err != nil {
		t.Fatalf("LoadSettings returned error: %v", err)
	}

	if settings != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", settings)
	}
}

func TestLoadSettingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "github_token = \"file-token\"\nhttp_timeout = \"45s\"\nintegrate = \"Always\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadSettings(path, func(string) string { return "" })
	if err != nil {
		t.Fatalf("LoadSettings returned error: %v", err)
	}

	if settings.GitHubToken != "file-token" {
		t.Fatalf("GitHubToken = %q", settings.GitHubToken)
	}
	if settings.HTTPTimeout != 45*time.Second {
		t.Fatalf("HTTPTimeout = %v", settings.HTTPTimeout)
	}
	if settings.Integrate != IntegrateAlways {
		t.Fatalf("Integrate = %q", settings.Integrate)
	}
}

func TestLoadSettingsEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("github_token = \"file-token\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		env       map[string]string
		wantToken string
	}{
		{name: "zap token wins", env: map[string]string{EnvGitHubToken: "zap", EnvGitHubTokenFallback: "gh"}, wantToken: "zap"},
		{name: "github token fallback", env: map[string]string{EnvGitHubTokenFallback: "gh"}, wantToken: "gh"},
		{name: "file token when env empty", env: map[string]string{}, wantToken: "file-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, err := LoadSettings(path, func(key string) string { return tt.env[key] })
			if err != nil {
				t.Fatalf("LoadSettings returned error: %v", err)
			}
			if settings.GitHubToken != tt.wantToken {
				t.Fatalf("GitHubToken = %q, want %q", settings.GitHubToken, tt.wantToken)
			}
		})
	}
}

func TestLoadSettingsRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "bad duration", content: "http_timeout = \"soon\"\n"},
		{name: "negative duration", content: "http_timeout = \"-1s\"\n"},
		{name: "unknown integrate mode", content: "integrate = \"sometimes\"\n"},
		{name: "bad env duration", env: map[string]string{EnvHTTPTimeout: "abc"}},
		{name: "malformed toml", content: "github_token = \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := LoadSettings(path, func(key string) string { return tt.env[key] })
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
