// Package butler drives the external itch.io butler tool that applies binary
// patches. It locates or provisions the binary, gates it on a minimum
// version, and runs `butler apply`.
package butler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/exec"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/fsutil"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/logger"
)

// ToolName is the butler executable name without platform suffix.
const ToolName = "butler"

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+[0-9A-Za-z.+-]*)`)

// Patcher resolves and runs butler. The resolved binary is cached for the
// lifetime of the Patcher.
type Patcher struct {
	layout      game.Layout
	platform    game.Platform
	runner      exec.CommandRunner
	tools       exec.ToolChecker
	client      *http.Client
	path        string
	downloadURL string
	minVersion  *semver.Version
	logger      logger.Logger

	mu       sync.Mutex
	resolved string
}

// Option configures a Patcher.
type Option func(*Patcher)

// WithRunner sets the command runner.
func WithRunner(r exec.CommandRunner) Option {
	return func(p *Patcher) {
		if r != nil {
			p.runner = r
		}
	}
}

// WithToolChecker sets the PATH lookup used to find butler.
func WithToolChecker(t exec.ToolChecker) Option {
	return func(p *Patcher) {
		if t != nil {
			p.tools = t
		}
	}
}

// WithHTTPClient sets the client used to provision butler.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Patcher) {
		if c != nil {
			p.client = c
		}
	}
}

// WithPath pins butler to an explicit binary. No other location is tried.
func WithPath(path string) Option {
	return func(p *Patcher) {
		p.path = path
	}
}

// WithDownloadURL sets the archive URL template; {os} and {arch} are replaced.
func WithDownloadURL(url string) Option {
	return func(p *Patcher) {
		if url != "" {
			p.downloadURL = url
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Patcher) {
		if log != nil {
			p.logger = log
		}
	}
}

// New creates a Patcher. minVersion must be a semantic version.
func New(layout game.Layout, platform game.Platform, minVersion string, opts ...Option) (*Patcher, error) {
	minV, err := semver.NewVersion(minVersion)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "invalid patcher min version %q", minVersion), game.ErrConfig)
	}

	p := &Patcher{
		layout:     layout,
		platform:   platform,
		runner:     exec.NewCommandRunner(0),
		tools:      exec.NewToolChecker(),
		client:     http.DefaultClient,
		minVersion: minV,
		logger:     logger.NewNoOpLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Ensure returns the path of a usable butler binary, provisioning it into the
// tools directory when necessary.
func (p *Patcher) Ensure(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resolved != "" {
		return p.resolved, nil
	}

	if p.path != "" {
		return p.accept(ctx, p.path)
	}

	for _, candidate := range p.localCandidates() {
		path, err := p.accept(ctx, candidate)
		if err == nil {
			return path, nil
		}

		p.logger.Debug("butler candidate rejected", "path", candidate, "error", err)
	}

	installed, err := p.provision(ctx)
	if err != nil {
		return "", err
	}

	return p.accept(ctx, installed)
}

// Apply runs `butler apply` of artifact onto targetDir, using scratchDir for
// butler's own staging.
func (p *Patcher) Apply(ctx context.Context, artifact, targetDir, scratchDir string) error {
	bin, err := p.Ensure(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(scratchDir, fsutil.DirPermissions); err != nil {
		return errors.Wrap(err, "creating butler scratch directory")
	}

	p.logger.Debug("applying patch", "artifact", artifact, "target", targetDir)

	result := p.runner.Run(ctx, bin, "apply", "--staging-dir", scratchDir, artifact, targetDir)
	if result.Success() {
		return nil
	}

	applyErr := &ApplyError{
		Artifact:  artifact,
		TargetDir: targetDir,
		ExitCode:  result.ExitCode,
		Output:    result.OutputLines(),
		Cause:     result.Err,
	}

	p.logger.Error("butler apply failed", "artifact", artifact, "exit", result.ExitCode, "lines", len(applyErr.Output))

	return applyErr
}

// accept checks the version of the binary at path and caches it.
func (p *Patcher) accept(ctx context.Context, path string) (string, error) {
	if !fsutil.Exists(path) {
		return "", errors.Wrapf(ErrUnavailable, "%s does not exist", path)
	}

	v, err := p.probeVersion(ctx, path)
	if err != nil {
		return "", err
	}

	if v.LessThan(p.minVersion) {
		return "", errors.Wrapf(ErrTooOld, "%s is %s, need >= %s", path, v, p.minVersion)
	}

	p.resolved = path

	p.logger.Info("patch tool ready", "path", path, "version", v.String())

	return path, nil
}

func (p *Patcher) probeVersion(ctx context.Context, path string) (*semver.Version, error) {
	result := p.runner.Run(ctx, path, "-V")
	if result.Failed() {
		return nil, errors.Wrapf(ErrUnavailable, "%s -V: %v", path, result.Err)
	}

	for _, line := range result.OutputLines() {
		m := versionPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		// A sentence-ending period is not part of the version.
		v, err := semver.NewVersion(strings.TrimRight(m[1], ".,"))
		if err == nil {
			return v, nil
		}
	}

	return nil, errors.Wrapf(ErrUnavailable, "%s -V printed no version", path)
}

func (p *Patcher) localCandidates() []string {
	candidates := []string{p.toolsBinary()}

	if found, err := p.tools.LookPath(ToolName); err == nil {
		candidates = append(candidates, found)
	}

	return candidates
}

func (p *Patcher) toolsBinary() string {
	return filepath.Join(p.layout.ButlerDir(), ToolName+p.platform.ExeSuffix())
}

// ArchiveURL returns the provisioning URL for the Patcher's platform.
func (p *Patcher) ArchiveURL() string {
	return strings.NewReplacer("{os}", p.platform.OS, "{arch}", p.platform.Arch).Replace(p.downloadURL)
}

// provision downloads the broth archive and installs it into the tools dir.
func (p *Patcher) provision(ctx context.Context) (string, error) {
	if p.downloadURL == "" {
		return "", errors.Wrap(ErrUnavailable, "butler not found and no download URL configured")
	}

	url := p.ArchiveURL()
	p.logger.Info("provisioning patch tool", "url", url)

	archive, err := downloadArchive(ctx, p.client, url)
	if err != nil {
		return "", errors.Mark(err, ErrUnavailable)
	}
	defer os.Remove(archive) //nolint:errcheck // temp file

	if err := os.MkdirAll(p.layout.ToolsDir(), fsutil.DirPermissions); err != nil {
		return "", errors.Wrap(err, "creating tools directory")
	}

	tmpDir, err := os.MkdirTemp(p.layout.ToolsDir(), ".butler-*")
	if err != nil {
		return "", errors.Wrap(err, "creating temp directory")
	}

	if err := extractZip(archive, tmpDir); err != nil {
		_ = os.RemoveAll(tmpDir)

		return "", errors.Mark(err, ErrUnavailable)
	}

	binary := filepath.Join(tmpDir, ToolName+p.platform.ExeSuffix())
	if !fsutil.Exists(binary) {
		_ = os.RemoveAll(tmpDir)

		return "", errors.Wrapf(ErrUnavailable, "archive from %s has no %s binary", url, ToolName)
	}

	if err := os.RemoveAll(p.layout.ButlerDir()); err != nil {
		_ = os.RemoveAll(tmpDir)

		return "", errors.Wrap(err, "removing previous patch tool")
	}

	if err := os.Rename(tmpDir, p.layout.ButlerDir()); err != nil {
		_ = os.RemoveAll(tmpDir)

		return "", errors.Wrap(err, "installing patch tool")
	}

	return p.toolsBinary(), nil
}
