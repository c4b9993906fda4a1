package patch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/telemetry"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/logger"
)

const defaultDownloadTimeout = 30 * time.Minute

// ProgressFunc is called during download with bytes received and total bytes.
// Total is -1 if the size is unknown.
type ProgressFunc func(received, total int64)

// Downloader fetches artifacts into the shared cache directory. Concurrent
// fetches of different artifacts are safe; for the same artifact the last
// rename wins.
type Downloader struct {
	source  *Source
	layout  game.Layout
	timeout time.Duration
	logger  logger.Logger
	metrics *telemetry.Metrics
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadTimeout bounds a single artifact transfer.
func WithDownloadTimeout(d time.Duration) DownloaderOption {
	return func(dl *Downloader) {
		if d > 0 {
			dl.timeout = d
		}
	}
}

// WithDownloaderLogger sets the logger.
func WithDownloaderLogger(log logger.Logger) DownloaderOption {
	return func(dl *Downloader) {
		if log != nil {
			dl.logger = log
		}
	}
}

// WithDownloaderMetrics sets the metrics sink.
func WithDownloaderMetrics(m *telemetry.Metrics) DownloaderOption {
	return func(dl *Downloader) {
		dl.metrics = m
	}
}

// NewDownloader creates a Downloader caching below layout's cache directory.
func NewDownloader(source *Source, layout game.Layout, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		source:  source,
		layout:  layout,
		timeout: defaultDownloadTimeout,
		logger:  logger.NewNoOpLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Fetch returns the local path of the artifact for e and the number of bytes
// transferred for it, downloading it unless a cached copy of exactly the
// announced size exists. A cache hit transfers nothing. A transfer that ends
// short of the announced size yields an *IntegrityError and leaves nothing
// behind in the cache.
func (d *Downloader) Fetch(ctx context.Context, branch game.Branch, e Edge, progress ProgressFunc) (string, int64, error) {
	path := d.layout.ArtifactPath(branch, e.Prev, e.Target)
	log := d.logger.With("branch", branch.String(), "edge", e.String())

	expected, err := d.source.Head(ctx, branch, e)
	if err != nil {
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			d.metrics.ObserveDownload(branch.String(), telemetry.DownloadFailed, 0)

			return "", 0, errors.Wrapf(err, "artifact %s", e)
		}

		log.Debug("size probe failed, size unknown", "error", err)

		expected = -1
	}

	if expected >= 0 {
		if info, statErr := os.Stat(path); statErr == nil && info.Mode().IsRegular() && info.Size() == expected {
			log.Info("using cached artifact", "path", path, "size", expected)
			d.metrics.ObserveDownload(branch.String(), telemetry.DownloadCached, 0)

			if progress != nil {
				progress(expected, expected)
			}

			return path, 0, nil
		}
	}

	written, err := d.download(ctx, branch, e, path, expected, progress)

	switch {
	case errors.Is(err, ErrIntegrity):
		log.Error("artifact failed integrity check", "error", err)
		d.metrics.ObserveDownload(branch.String(), telemetry.DownloadIntegrity, written)

		return "", written, err
	case err != nil:
		d.metrics.ObserveDownload(branch.String(), telemetry.DownloadFailed, written)

		return "", written, err
	}

	log.Info("artifact downloaded", "path", path, "size", written)
	d.metrics.ObserveDownload(branch.String(), telemetry.DownloadFetched, written)

	return path, written, nil
}

func (d *Downloader) download(
	ctx context.Context,
	branch game.Branch,
	e Edge,
	path string,
	expected int64,
	progress ProgressFunc,
) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, errors.Wrap(err, "creating cache directory")
	}

	resp, err := d.source.Get(ctx, branch, e)
	if err != nil {
		return 0, errors.Wrapf(err, "artifact %s", e)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on response body

	if expected < 0 {
		expected = resp.ContentLength
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.part")
	if err != nil {
		return 0, errors.Wrap(err, "creating partial file")
	}

	tmpPath := tmp.Name()
	discard := func() { _ = os.Remove(tmpPath) }

	var reader io.Reader = resp.Body
	if progress != nil {
		reader = &progressReader{reader: resp.Body, total: expected, callback: progress}
	}

	written, copyErr := io.Copy(tmp, reader)
	closeErr := tmp.Close()

	switch {
	case errors.Is(copyErr, io.ErrUnexpectedEOF):
		discard()

		return written, &IntegrityError{
			Branch: branch, Edge: e, Expected: expected, Actual: written, Reason: "connection closed early",
		}
	case copyErr != nil:
		discard()

		return written, errors.Wrapf(copyErr, "downloading artifact %s", e)
	case closeErr != nil:
		discard()

		return written, errors.Wrap(closeErr, "closing partial file")
	}

	if expected >= 0 && written != expected {
		discard()

		return written, &IntegrityError{Branch: branch, Edge: e, Expected: expected, Actual: written}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		discard()

		return written, errors.Wrap(err, "moving artifact into cache")
	}

	return written, nil
}

// progressReader wraps an io.Reader and reports progress.
type progressReader struct {
	reader   io.Reader
	total    int64
	received int64
	callback ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.received += int64(n)

	if r.callback != nil {
		r.callback(r.received, r.total)
	}

	return n, err
}
