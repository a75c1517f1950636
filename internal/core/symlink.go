package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slobbe/zap/internal/logging"
	models "github.com/slobbe/zap/internal/types"
)

// SymlinkManager owns the one PATH entry per app in the local bin directory.
type SymlinkManager struct {
	binDir string
	log    zerolog.Logger
}

func NewSymlinkManager(binDir string) *SymlinkManager {
	return &SymlinkManager{binDir: binDir, log: logging.GetLogger("symlink")}
}

func (s *SymlinkManager) Path(name string) string {
	return filepath.Join(s.binDir, name)
}

// Create points {binDir}/{executable} at the record's bundle, replacing
// whatever was there.
func (s *SymlinkManager) Create(record models.Record) error {
	target := strings.TrimSpace(record.FilePath)
	if target == "" || !filepath.IsAbs(target) {
		return fmt.Errorf("%w: bundle path %q must be absolute", models.ErrInvalidPath, record.FilePath)
	}
	if strings.TrimSpace(record.Executable) == "" || strings.ContainsRune(record.Executable, filepath.Separator) {
		return fmt.Errorf("%w: executable name %q", models.ErrInvalidPath, record.Executable)
	}

	if err := os.MkdirAll(s.binDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.binDir, err)
	}

	link := s.Path(record.Executable)
	if _, err := os.Lstat(link); err == nil {
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("failed to replace %s: %w", link, err)
		}
	}

	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("failed to link %s: %w", link, err)
	}

	s.log.Debug().Str("link", link).Str("target", target).Msg("created symlink")
	return nil
}

// Remove deletes the PATH entry for name. A missing entry is reported as an
// error wrapping fs.ErrNotExist.
func (s *SymlinkManager) Remove(name string) error {
	link := s.Path(name)
	if err := os.Remove(link); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no link at %s: %w", link, fs.ErrNotExist)
		}
		return fmt.Errorf("failed to remove %s: %w", link, err)
	}
	return nil
}
