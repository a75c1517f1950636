package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const appDirName = "zap"

// Paths is the fixed set of directories zap reads and writes. It is computed
// once at startup and passed to every component.
type Paths struct {
	Root         string // state root
	IndexDir     string // one {executable}.json per installed app
	AppImagesDir string // cached bundles
	DesktopsDir  string // zap's own copy of each desktop entry
	IconsDir     string // {executable}.png
	TempDir      string // scratch space for bundle extraction

	LocalBinDir          string // ~/.local/bin, expected on PATH
	LocalApplicationsDir string // ~/.local/share/applications
}

// ResolvePaths derives every well-known directory from the home directory.
func ResolvePaths(home string) Paths {
	root := filepath.Join(home, ".local", "share", appDirName)

	return Paths{
		Root:                 root,
		IndexDir:             filepath.Join(root, "index"),
		AppImagesDir:         filepath.Join(root, "appimages"),
		DesktopsDir:          filepath.Join(root, "desktops"),
		IconsDir:             filepath.Join(root, "icons"),
		TempDir:              filepath.Join(root, "tmp"),
		LocalBinDir:          filepath.Join(home, ".local", "bin"),
		LocalApplicationsDir: filepath.Join(home, ".local", "share", "applications"),
	}
}

// DefaultPaths resolves Paths for the current user.
func DefaultPaths() (Paths, error) {
	home, err := homeDir()
	if err != nil {
		return Paths{}, err
	}
	return ResolvePaths(home), nil
}

// IndexFile is the path of the index record for name.
func (p Paths) IndexFile(name string) string {
	return filepath.Join(p.IndexDir, name+".json")
}

// DesktopEntries lists both locations a desktop entry for name is installed to.
func (p Paths) DesktopEntries(name string) []string {
	return []string{
		filepath.Join(p.DesktopsDir, name+".desktop"),
		filepath.Join(p.LocalApplicationsDir, name+".desktop"),
	}
}

// IconFile is the installed icon path for name.
func (p Paths) IconFile(name string) string {
	return filepath.Join(p.IconsDir, name+".png")
}

// SymlinkFile is the PATH entry for name.
func (p Paths) SymlinkFile(name string) string {
	return filepath.Join(p.LocalBinDir, name)
}

func homeDir() (string, error) {
	home := strings.TrimSpace(xdg.Home)
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
	}
	if !filepath.IsAbs(home) {
		return "", fmt.Errorf("home directory %q is not absolute", home)
	}
	return filepath.Clean(home), nil
}
