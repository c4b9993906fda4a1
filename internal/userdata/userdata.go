// Package userdata carries per-user persistent files across a version swap.
// Subtrees matching the preserve patterns are copied out of the old
// installation and written back into the new one.
package userdata

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/fsutil"
)

// ErrInvalidPattern is returned for malformed preserve patterns.
var ErrInvalidPattern = errors.New("invalid preserve pattern")

// Backup is a set of preserved subtrees keyed by slash-separated path
// relative to the installation root.
type Backup struct {
	Dir     string
	Entries []string
}

// Empty reports whether nothing was preserved.
func (b *Backup) Empty() bool {
	return b == nil || len(b.Entries) == 0
}

// Preserve copies every file or directory under root that matches one of
// patterns into backupDir. A matched directory is copied whole and not
// descended into. A missing root yields an empty backup.
func Preserve(root, backupDir string, patterns []string) (*Backup, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Wrapf(ErrInvalidPattern, "%q", p)
		}
	}

	b := &Backup{Dir: backupDir}

	if !fsutil.IsDir(root) || len(patterns) == 0 {
		return b, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)

		if !matchAny(patterns, rel) {
			return nil
		}

		dst := filepath.Join(backupDir, filepath.FromSlash(rel))

		if d.IsDir() {
			if err := fsutil.CopyTree(path, dst); err != nil {
				return err
			}

			b.Entries = append(b.Entries, rel)

			return filepath.SkipDir
		}

		if d.Type().IsRegular() {
			if err := fsutil.CopyFile(path, dst); err != nil {
				return err
			}

			b.Entries = append(b.Entries, rel)
		}

		return nil
	})
	if err != nil {
		_ = os.RemoveAll(backupDir)

		return nil, errors.Wrapf(err, "preserving user data from %s", root)
	}

	slices.Sort(b.Entries)

	return b, nil
}

// Restore writes every preserved entry into root, replacing whatever the new
// installation shipped at that path.
func Restore(b *Backup, root string) error {
	if b.Empty() {
		return nil
	}

	for _, rel := range b.Entries {
		src := filepath.Join(b.Dir, filepath.FromSlash(rel))
		dst := filepath.Join(root, filepath.FromSlash(rel))

		if err := os.RemoveAll(dst); err != nil {
			return errors.Wrapf(err, "clearing %s", dst)
		}

		var err error
		if fsutil.IsDir(src) {
			err = fsutil.CopyTree(src, dst)
		} else {
			err = fsutil.CopyFile(src, dst)
		}

		if err != nil {
			return errors.Wrapf(err, "restoring %s", rel)
		}
	}

	return nil
}

// Discard deletes the backup directory.
func Discard(b *Backup) error {
	if b == nil || b.Dir == "" {
		return nil
	}

	return errors.Wrap(os.RemoveAll(b.Dir), "discarding user data backup")
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}

	return false
}
