package butler

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// binaryFileMode is the permission mode for the extracted butler binary.
const binaryFileMode = 0o755

// downloadArchive fetches url into a temp file and returns its path.
//
//nolint:gosec // G107: url comes from configuration
func downloadArchive(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "downloading patch tool")
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("patch tool download failed: HTTP %d", resp.StatusCode)
	}

	out, err := os.CreateTemp("", "janlauncher-butler-*.zip")
	if err != nil {
		return "", errors.Wrap(err, "creating temp file for archive")
	}

	if _, copyErr := io.Copy(out, resp.Body); copyErr != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())

		return "", errors.Wrap(copyErr, "writing archive")
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())

		return "", errors.Wrap(err, "closing archive")
	}

	return out.Name(), nil
}

// extractZip unpacks every regular file of the archive into destDir. The
// broth archive ships butler next to the shared libraries it loads.
func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(err, "opening zip archive")
	}
	defer r.Close() //nolint:errcheck // read-only zip

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		dest, pathErr := safePath(destDir, f.Name)
		if pathErr != nil {
			return pathErr
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
			return errors.Wrap(err, "creating directory")
		}

		rc, openErr := f.Open()
		if openErr != nil {
			return errors.Wrap(openErr, "opening zip entry")
		}

		writeErr := extractToFile(dest, rc)

		_ = rc.Close()

		if writeErr != nil {
			return writeErr
		}
	}

	return nil
}

// safePath validates that name resolves to a path within baseDir, preventing
// path traversal (Zip Slip) attacks from crafted archive entries.
func safePath(baseDir, name string) (string, error) {
	dest := filepath.Join(baseDir, name)

	cleanBase := filepath.Clean(baseDir) + string(os.PathSeparator)
	cleanDest := filepath.Clean(dest)

	if !strings.HasPrefix(cleanDest, cleanBase) {
		return "", errors.Errorf("path traversal attempt: %q escapes %q", name, baseDir)
	}

	return cleanDest, nil
}

// extractToFile writes reader to destPath with executable permissions.
//
//nolint:gosec // G304: destPath is validated by safePath
func extractToFile(destPath string, reader io.Reader) error {
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, binaryFileMode)
	if err != nil {
		return errors.Wrap(err, "creating extracted file")
	}

	_, copyErr := io.Copy(out, reader)

	if closeErr := out.Close(); closeErr != nil && copyErr == nil {
		return errors.Wrap(closeErr, "closing extracted file")
	}

	if copyErr != nil {
		return errors.Wrap(copyErr, "extracting file")
	}

	return nil
}
