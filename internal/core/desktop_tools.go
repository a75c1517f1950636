package core

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	desktopToolLookPath       = exec.LookPath
	desktopToolCommandContext = exec.CommandContext
)

// runDesktopTool runs name when it is on PATH. ran is false when the tool is
// not installed, which is not an error.
func runDesktopTool(ctx context.Context, name string, args ...string) (ran bool, err error) {
	binary, err := desktopToolLookPath(name)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to find %s: %w", name, err)
	}

	out, err := desktopToolCommandContext(ctx, binary, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return true, fmt.Errorf("%s: %s", name, msg)
		}
		return true, fmt.Errorf("%s: %w", name, err)
	}
	return true, nil
}

// validateDesktopEntry checks path with desktop-file-validate.
func validateDesktopEntry(ctx context.Context, path string) (bool, error) {
	return runDesktopTool(ctx, "desktop-file-validate", path)
}

// refreshDesktopDatabase rebuilds the MIME cache of an applications directory.
func refreshDesktopDatabase(ctx context.Context, dir string) (bool, error) {
	return runDesktopTool(ctx, "update-desktop-database", dir)
}
