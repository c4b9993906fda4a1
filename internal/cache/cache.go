// Package cache inspects and prunes the downloaded patch artifact cache.
// Artifacts are only needed until the install that fetched them commits, so
// anything in the cache may be removed between runs.
package cache

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/logger"
)

const artifactExt = ".pwr"

// Entry is one cached artifact.
type Entry struct {
	Path    string
	Branch  game.Branch
	Edge    patch.Edge
	Size    int64
	ModTime time.Time
}

// PruneResult lists what a prune removed or would remove.
type PruneResult struct {
	Removed    []Entry
	FreedBytes int64
	Kept       int
}

// Cache manages the artifact cache directory of a layout.
type Cache struct {
	dir    string
	logger logger.Logger
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithTimeFunc overrides the clock.
func WithTimeFunc(fn func() time.Time) Option {
	return func(c *Cache) {
		if fn != nil {
			c.now = fn
		}
	}
}

// New creates a Cache for layout.CacheDir().
func New(layout game.Layout, opts ...Option) *Cache {
	c := &Cache{
		dir:    layout.CacheDir(),
		logger: logger.NewNoOpLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Entries lists cached artifacts, oldest first. Partial downloads and
// foreign files are skipped.
func (c *Cache) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrapf(err, "reading cache %s", c.dir)
	}

	var entries []Entry

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}

		branch, edge, ok := parseArtifactName(de.Name())
		if !ok {
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue
		}

		entries = append(entries, Entry{
			Path:    filepath.Join(c.dir, de.Name()),
			Branch:  branch,
			Edge:    edge,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return oldestFirst(entries), nil
}

// Prune removes every artifact policy does not retain. With dryRun nothing
// is deleted.
func (c *Cache) Prune(policy RetentionPolicy, dryRun bool) (*PruneResult, error) {
	entries, err := c.Entries()
	if err != nil {
		return nil, err
	}

	ctx := RetentionContext{All: entries, Now: c.now()}
	for _, e := range entries {
		ctx.TotalSize += e.Size
	}

	result := &PruneResult{}

	var errs error

	for _, e := range entries {
		if policy.ShouldRetain(e, ctx) {
			result.Kept++

			continue
		}

		if !dryRun {
			if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
				errs = errors.CombineErrors(errs, errors.Wrapf(err, "removing %s", e.Path))

				continue
			}
		}

		result.Removed = append(result.Removed, e)
		result.FreedBytes += e.Size
	}

	c.logger.Info("cache pruned",
		"removed", len(result.Removed),
		"kept", result.Kept,
		"freed_bytes", result.FreedBytes,
		"dry_run", dryRun,
	)

	return result, errs
}

// parseArtifactName reverses game.Layout.ArtifactPath: <branch>_<prev>_<target>.pwr.
func parseArtifactName(name string) (game.Branch, patch.Edge, bool) {
	stem, ok := strings.CutSuffix(name, artifactExt)
	if !ok {
		return "", patch.Edge{}, false
	}

	parts := strings.Split(stem, "_")
	if len(parts) != 3 {
		return "", patch.Edge{}, false
	}

	branch, err := game.ParseBranch(parts[0])
	if err != nil {
		return "", patch.Edge{}, false
	}

	target, err := game.ParseVersion(parts[2])
	if err != nil {
		return "", patch.Edge{}, false
	}

	var prev game.Version

	if parts[1] != "0" {
		if prev, err = game.ParseVersion(parts[1]); err != nil {
			return "", patch.Edge{}, false
		}
	}

	edge := patch.Edge{Prev: prev, Target: target}
	if !edge.Valid() {
		return "", patch.Edge{}, false
	}

	return branch, edge, true
}
