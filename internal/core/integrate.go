package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slobbe/zap/internal/config"
	"github.com/slobbe/zap/internal/desktop"
	util "github.com/slobbe/zap/internal/helpers"
	"github.com/slobbe/zap/internal/logging"
	models "github.com/slobbe/zap/internal/types"
)

// extractPatterns are passed to --appimage-extract in order. The root-level
// entry is often a symlink into usr/share/applications, hence the second pass.
var extractPatterns = []string{
	"*.desktop",
	"usr/share/applications/*.desktop",
	"usr/share/icons/hicolor/*/apps/*.png",
}

// iconSizes is the icon fallback chain, largest first.
var iconSizes = []int{1024, 512, 256, 192, 128, 96, 64, 48, 32, 24, 16}

const extractRoot = "squashfs-root"

// Extractor unpacks files matching pattern from bundle into dir/squashfs-root.
type Extractor interface {
	Extract(ctx context.Context, bundle, dir, pattern string) error
}

var extractCommandContext = exec.CommandContext

// SelfExtractor runs the bundle's own --appimage-extract.
type SelfExtractor struct{}

func (SelfExtractor) Extract(ctx context.Context, bundle, dir, pattern string) error {
	cmd := extractCommandContext(ctx, bundle, "--appimage-extract", pattern)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("extract %q failed: %w: %s", pattern, err, msg)
		}
		return fmt.Errorf("extract %q failed: %w", pattern, err)
	}
	return nil
}

// Integration lists what Integrate installed.
type Integration struct {
	DesktopEntries []string
	// Icon is empty when the bundle ships no hicolor PNG.
	Icon string
}

// DesktopIntegrator installs a bundle's desktop entry and icon.
type DesktopIntegrator struct {
	paths     config.Paths
	extractor Extractor
	log       zerolog.Logger
}

func NewDesktopIntegrator(paths config.Paths, extractor Extractor) *DesktopIntegrator {
	if extractor == nil {
		extractor = SelfExtractor{}
	}
	return &DesktopIntegrator{
		paths:     paths,
		extractor: extractor,
		log:       logging.GetLogger("integrate"),
	}
}

// Integrate extracts the launcher metadata of record's bundle into a scratch
// directory, rewrites it to point at the cached bundle and installs the entry
// and icon. Only the primary entry is installed when the bundle ships several.
// The scratch directory is always removed. Files installed before a failure
// are left in place.
func (d *DesktopIntegrator) Integrate(ctx context.Context, record models.Record) (Integration, error) {
	var result Integration

	if err := os.MkdirAll(d.paths.TempDir, 0o755); err != nil {
		return result, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	scratch, err := os.MkdirTemp(d.paths.TempDir, record.Executable+"-")
	if err != nil {
		return result, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			d.log.Warn().Err(err).Str("dir", scratch).Msg("could not remove scratch directory")
		}
	}()

	for _, pattern := range extractPatterns {
		d.log.Debug().Str("bundle", record.FilePath).Str("pattern", pattern).Msg("extracting")
		if err := d.extractor.Extract(ctx, record.FilePath, scratch, pattern); err != nil {
			return result, err
		}
	}
	root := filepath.Join(scratch, extractRoot)

	content, entry, err := d.primaryEntry(root)
	if err != nil {
		return result, err
	}

	iconName := ""
	if entry != nil {
		iconName, _ = entry.Get(desktop.EntryGroup, "Icon")
		d.log.Debug().Str("name", entry.Name()).Str("icon", iconName).Msg("found desktop entry")
	}
	iconSrc := findIcon(root, iconName)

	if iconSrc != "" {
		result.Icon = d.paths.IconFile(record.Executable)
		if err := util.EnsureDirs(d.paths.IconsDir); err != nil {
			return result, err
		}
		if err := util.Copy(iconSrc, result.Icon, 0o644); err != nil {
			return result, fmt.Errorf("failed to install icon: %w", err)
		}
		d.log.Debug().Str("src", iconSrc).Str("dest", result.Icon).Msg("installed icon")
	} else {
		d.log.Info().Str("app", record.Executable).Msg("bundle ships no icon")
	}

	rewritten := desktop.Rewrite(content, record.FilePath, result.Icon)
	if err := util.EnsureDirs(d.paths.DesktopsDir, d.paths.LocalApplicationsDir); err != nil {
		return result, err
	}
	for _, dest := range d.paths.DesktopEntries(record.Executable) {
		if err := util.WriteFileAtomic(dest, []byte(rewritten), 0o644); err != nil {
			return result, fmt.Errorf("failed to install desktop entry: %w", err)
		}
		result.DesktopEntries = append(result.DesktopEntries, dest)
	}

	visible := result.DesktopEntries[len(result.DesktopEntries)-1]
	if _, err := validateDesktopEntry(ctx, visible); err != nil {
		d.log.Warn().Err(err).Str("path", visible).Msg("desktop entry did not validate")
	}
	if _, err := refreshDesktopDatabase(ctx, d.paths.LocalApplicationsDir); err != nil {
		d.log.Warn().Err(err).Msg("failed to refresh desktop database")
	}

	d.log.Info().Str("app", record.Executable).Strs("entries", result.DesktopEntries).Msg("desktop integration complete")
	return result, nil
}

// primaryEntry picks the desktop file to install: root-level entries before
// nested ones, and among those the first that declares [Desktop Entry]. When
// none parses, the first readable file is used as is.
func (d *DesktopIntegrator) primaryEntry(root string) (string, *desktop.File, error) {
	var candidates []string
	for _, pattern := range []string{
		filepath.Join(root, "*.desktop"),
		filepath.Join(root, "usr", "share", "applications", "*.desktop"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return "", nil, err
		}
		candidates = append(candidates, matches...)
	}

	fallback := ""
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			// Root-level entries are usually symlinks and may dangle.
			d.log.Debug().Err(err).Str("path", candidate).Msg("skipping unreadable desktop entry")
			continue
		}
		if fallback == "" {
			fallback = string(data)
		}
		entry, err := desktop.Parse(bytes.NewReader(data))
		if err == nil && entry.HasEntry() {
			return string(data), entry, nil
		}
	}

	if fallback == "" {
		return "", nil, errors.New("no desktop entry found in bundle")
	}
	return fallback, nil, nil
}

// findIcon walks iconSizes and returns a PNG from the first apps directory
// that holds any, preferring one named after iconName. Symlinks are resolved.
func findIcon(root, iconName string) string {
	for _, size := range iconSizes {
		dir := filepath.Join(root, "usr", "share", "icons", "hicolor", fmt.Sprintf("%dx%d", size, size), "apps")
		matches, _ := filepath.Glob(filepath.Join(dir, "*.png"))

		var resolved []string
		for _, match := range matches {
			real, err := filepath.EvalSymlinks(match)
			if err != nil {
				continue
			}
			if info, err := os.Stat(real); err != nil || info.IsDir() {
				continue
			}
			if iconName != "" && strings.TrimSuffix(filepath.Base(match), filepath.Ext(match)) == iconName {
				return real
			}
			resolved = append(resolved, real)
		}
		if len(resolved) > 0 {
			return resolved[0]
		}
	}
	return ""
}
