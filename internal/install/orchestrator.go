// Package install turns a (branch, version) request into a live, validated
// installation: it resolves a patch chain from an installed source, applies
// it in a staging tree, and swaps the result into place while carrying user
// data across.
package install

import (
	"context"
	"time"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/inspect"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/store"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/telemetry"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/logger"
)

// Defaults for the retry policy.
const (
	DefaultDownloadAttempts = 2
	DefaultMaxFallbacks     = 1

	// DefaultStaleAfter is the age after which Recover treats staging trees
	// and swap backups as abandoned by a dead run.
	DefaultStaleAfter = 6 * time.Hour
)

// DefaultPreservePatterns selects the per-user data carried across installs.
var DefaultPreservePatterns = []string{"**/UserData"}

// Discoverer returns the patch graph of a branch.
type Discoverer interface {
	Discover(ctx context.Context, branch game.Branch) (*patch.Graph, error)
}

// Fetcher downloads the artifact of one edge and returns its local path and
// the bytes transferred, which are zero for a cached artifact.
type Fetcher interface {
	Fetch(ctx context.Context, branch game.Branch, e patch.Edge, progress patch.ProgressFunc) (string, int64, error)
}

// Applier applies a patch artifact onto a directory.
type Applier interface {
	Ensure(ctx context.Context) (string, error)
	Apply(ctx context.Context, artifact, targetDir, scratchDir string) error
}

// ProfileStore tracks which version each profile has active.
type ProfileStore interface {
	ActiveVersion(profile string, branch game.Branch) (game.Version, bool, error)
	SetActiveVersion(profile string, branch game.Branch, version game.Version) error
	InUse(branch game.Branch, version game.Version) (bool, error)
}

// Request asks for one version of one branch.
type Request struct {
	Branch  game.Branch
	Version game.Version

	// Force reinstalls from scratch even when the version is installed.
	Force bool

	// Profile, when set, selects the preferred patch source and receives the
	// installed version as active.
	Profile string
}

// Result describes a finished install.
type Result struct {
	Branch           game.Branch
	Version          game.Version
	Dir              string
	AlreadyInstalled bool
	Plan             patch.Plan
	Fallbacks        int
	BytesDownloaded  int64
	Record           *store.Record
	Duration         time.Duration
}

// Orchestrator runs installs, removals and crash recovery.
type Orchestrator struct {
	layout     game.Layout
	platform   game.Platform
	discovery  Discoverer
	downloader Fetcher
	applier    Applier
	store      *store.Store
	validator  *inspect.Validator
	profiles   ProfileStore
	metrics    *telemetry.Metrics
	logger     logger.Logger

	preserve         []string
	downloadAttempts int
	maxFallbacks     int
	staleAfter       time.Duration

	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore sets the version store.
func WithStore(s *store.Store) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.store = s
		}
	}
}

// WithValidator sets the installation validator.
func WithValidator(v *inspect.Validator) Option {
	return func(o *Orchestrator) {
		if v != nil {
			o.validator = v
		}
	}
}

// WithProfiles sets the profile store.
func WithProfiles(p ProfileStore) Option {
	return func(o *Orchestrator) {
		o.profiles = p
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithPreservePatterns sets the user-data globs.
func WithPreservePatterns(patterns []string) Option {
	return func(o *Orchestrator) {
		o.preserve = patterns
	}
}

// WithDownloadAttempts bounds downloads of one artifact after integrity errors.
func WithDownloadAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.downloadAttempts = n
		}
	}
}

// WithMaxFallbacks bounds full-reinstall retries after a failed incremental edge.
func WithMaxFallbacks(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxFallbacks = n
		}
	}
}

// WithStaleAfter sets the age below which Recover leaves staging trees and
// swap backups alone. It must exceed the longest install of any process
// sharing the data root.
func WithStaleAfter(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.staleAfter = d
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.now = fn
		}
	}
}

// New creates an Orchestrator.
func New(
	layout game.Layout,
	platform game.Platform,
	discovery Discoverer,
	downloader Fetcher,
	applier Applier,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		layout:           layout,
		platform:         platform,
		discovery:        discovery,
		downloader:       downloader,
		applier:          applier,
		logger:           logger.NewNoOpLogger(),
		preserve:         DefaultPreservePatterns,
		downloadAttempts: DefaultDownloadAttempts,
		maxFallbacks:     DefaultMaxFallbacks,
		staleAfter:       DefaultStaleAfter,
		now:              time.Now,
		rename:           osRename,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		o.store = store.New(layout, store.WithLogger(o.logger))
	}

	if o.validator == nil {
		o.validator = inspect.New(platform)
	}

	return o
}

// Store returns the version store.
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

// Installed returns the indexed versions of branch whose directories pass
// validation.
func (o *Orchestrator) Installed(branch game.Branch) ([]store.Record, error) {
	records, err := o.store.Installed(branch)
	if err != nil {
		return nil, err
	}

	valid := records[:0]

	for _, r := range records {
		if o.validator.IsValid(o.layout.VersionDir(r.Branch, r.Version)) {
			valid = append(valid, r)
		}
	}

	return valid, nil
}

// isInstalled checks metadata and executable without touching the network.
func (o *Orchestrator) isInstalled(branch game.Branch, version game.Version) bool {
	if _, err := o.store.ReadMetadata(branch, version); err != nil {
		return false
	}

	return o.validator.IsValid(o.layout.VersionDir(branch, version))
}
