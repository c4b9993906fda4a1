// Package xdg resolves janlauncher's on-disk locations following the XDG Base
// Directory conventions. The game data root layout below DataDir lives in
// internal/game.
package xdg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

const appName = "janlauncher"

// Environment overrides.
const (
	EnvLogFile = "JANLAUNCHER_LOG_FILE"
	EnvDataDir = "JANLAUNCHER_DATA_DIR"
)

func userHome() (string, error) {
	return os.UserHomeDir()
}

func baseDir(envKey string, fallback ...string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}

	home, err := userHome()
	if err != nil {
		home = "~"
	}

	return filepath.Join(append([]string{home}, fallback...)...)
}

// ConfigHome returns $XDG_CONFIG_HOME or ~/.config.
func ConfigHome() string {
	return baseDir("XDG_CONFIG_HOME", ".config")
}

// DataHome returns $XDG_DATA_HOME or ~/.local/share.
func DataHome() string {
	return baseDir("XDG_DATA_HOME", ".local", "share")
}

// StateHome returns $XDG_STATE_HOME or ~/.local/state.
func StateHome() string {
	return baseDir("XDG_STATE_HOME", ".local", "state")
}

// ConfigDir returns ConfigHome()/janlauncher.
func ConfigDir() string {
	return filepath.Join(ConfigHome(), appName)
}

// DataDir returns the launcher data root: $JANLAUNCHER_DATA_DIR when set,
// otherwise DataHome()/janlauncher.
func DataDir() string {
	if v := os.Getenv(EnvDataDir); v != "" {
		return v
	}

	return filepath.Join(DataHome(), appName)
}

// StateDir returns StateHome()/janlauncher.
func StateDir() string {
	return filepath.Join(StateHome(), appName)
}

// GlobalConfigFile returns ConfigDir()/config.toml.
func GlobalConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// LogFile returns $JANLAUNCHER_LOG_FILE or StateDir()/janlauncher.log.
func LogFile() string {
	if v := os.Getenv(EnvLogFile); v != "" {
		return v
	}

	return filepath.Join(StateDir(), appName+".log")
}

// ExpandPath resolves a ~ prefix to the user's home directory.
// Returns an error for forms like "~foo".
func ExpandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	home, err := userHome()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}

	switch {
	case path == "~":
		return home, nil
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:]), nil
	default:
		return "", errors.Newf("paths starting with ~ must be either ~ or ~/subdir, got %q", path)
	}
}

// EnsureDir creates a directory with 0700 permissions if it doesn't exist,
// and tightens permissions on an existing one.
func EnsureDir(path string) error {
	const dirMode = 0o700

	if err := os.MkdirAll(path, dirMode); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "failed to stat directory %s", path)
	}

	if info.Mode().Perm() != dirMode {
		if err := os.Chmod(path, dirMode); err != nil {
			return errors.Wrapf(err, "failed to set permissions on %s", path)
		}
	}

	return nil
}
