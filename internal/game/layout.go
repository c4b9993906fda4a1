package game

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// MetadataFile is the per-installation metadata file name.
const MetadataFile = "version.json"

// Layout maps the launcher data root to concrete paths:
//
//	game/versions/<branch>/<id>/
//	game/versions/index.json
//	game/staging/<branch>-<id>-<unixmillis>/
//	game/cache/<branch>_<prev>_<target>.pwr
//	tools/butler/
//	profiles.json
type Layout struct {
	Root string
}

// NewLayout returns a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// GameDir returns <root>/game.
func (l Layout) GameDir() string {
	return filepath.Join(l.Root, "game")
}

// VersionsDir returns <root>/game/versions.
func (l Layout) VersionsDir() string {
	return filepath.Join(l.GameDir(), "versions")
}

// BranchDir returns the directory holding every installed version of b.
func (l Layout) BranchDir(b Branch) string {
	return filepath.Join(l.VersionsDir(), string(b))
}

// VersionDir returns the live installation directory of (b, v).
func (l Layout) VersionDir(b Branch, v Version) string {
	return filepath.Join(l.BranchDir(b), v.ID())
}

// IndexFile returns the installed-version index path.
func (l Layout) IndexFile() string {
	return filepath.Join(l.VersionsDir(), "index.json")
}

// StagingDir returns <root>/game/staging.
func (l Layout) StagingDir() string {
	return filepath.Join(l.GameDir(), "staging")
}

// StagingPath returns a staging directory name unique per run.
func (l Layout) StagingPath(b Branch, v Version, now time.Time) string {
	return filepath.Join(l.StagingDir(), fmt.Sprintf("%s-%s-%d", b, v.ID(), now.UnixMilli()))
}

// CacheDir returns <root>/game/cache.
func (l Layout) CacheDir() string {
	return filepath.Join(l.GameDir(), "cache")
}

// ArtifactPath returns the cached artifact path for one edge of branch b.
func (l Layout) ArtifactPath(b Branch, prev, target Version) string {
	return filepath.Join(l.CacheDir(), fmt.Sprintf("%s_%d_%d.pwr", b, prev, target))
}

// ToolsDir returns <root>/tools.
func (l Layout) ToolsDir() string {
	return filepath.Join(l.Root, "tools")
}

// ButlerDir returns the directory the patch tool is provisioned into.
func (l Layout) ButlerDir() string {
	return filepath.Join(l.ToolsDir(), "butler")
}

// ProfilesFile returns <root>/profiles.json.
func (l Layout) ProfilesFile() string {
	return filepath.Join(l.Root, "profiles.json")
}

const backupInfix = ".bak-"

// BackupPrefix returns the prefix of swap backups of a live directory.
func BackupPrefix(liveDir string) string {
	return filepath.Clean(liveDir) + backupInfix
}

// ParseBackupName splits a swap backup name into the base name of its live
// directory and the time the backup was taken.
func ParseBackupName(name string) (string, time.Time, bool) {
	base, stamp, ok := strings.Cut(name, backupInfix)
	if !ok || base == "" {
		return "", time.Time{}, false
	}

	at, ok := parseMillis(stamp)

	return base, at, ok
}

// StagingTime returns the creation time encoded in a staging entry name,
// including the sidecar directories derived from it.
func StagingTime(name string) (time.Time, bool) {
	i := strings.LastIndexByte(name, '-')
	if i < 0 {
		return time.Time{}, false
	}

	stamp, _, _ := strings.Cut(name[i+1:], ".")

	return parseMillis(stamp)
}

func parseMillis(s string) (time.Time, bool) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, false
	}

	return time.UnixMilli(ms), true
}
