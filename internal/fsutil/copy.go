package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// CopyTree recursively copies src into dst, creating dst. Regular files keep
// their permission bits and symlinks are recreated as links.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", src)
	}

	if !info.IsDir() {
		return errors.Newf("%s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			dirInfo, err := d.Info()
			if err != nil {
				return err
			}

			return os.MkdirAll(target, dirInfo.Mode().Perm()|0o700)

		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return errors.Wrapf(err, "failed to read link %s", path)
			}

			return os.Symlink(link, target)

		case d.Type().IsRegular():
			return CopyFile(path, target)

		default:
			// sockets, devices and pipes have no place in a game tree
			return nil
		}
	})
}

// CopyFile copies a regular file, preserving its permission bits.
//
//nolint:gosec // paths are inside the launcher data root
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close() //nolint:errcheck // read-only

	info, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), DirPermissions); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()

		return errors.Wrapf(err, "failed to copy %s", src)
	}

	return out.Close()
}

// DirSize returns the total size of regular files below dir.
func DirSize(dir string) (int64, error) {
	var total int64

	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		total += info.Size()

		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to size %s", dir)
	}

	return total, nil
}
