// Package store persists which game versions are installed: one version.json
// per installation directory and an index file that caches them. The index
// can always be rebuilt by rescanning the version directories.
package store

import (
	"encoding/json"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/fsutil"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/logger"
)

var (
	// ErrNotFound is returned when a version has no metadata on disk.
	ErrNotFound = errors.New("version metadata not found")

	// ErrInvalidMetadata is returned when version.json is unreadable or
	// describes a different version than its directory.
	ErrInvalidMetadata = errors.New("invalid version metadata")
)

// Record is the durable proof that a version was installed.
type Record struct {
	ID          string       `json:"id"`
	Branch      game.Branch  `json:"branch"`
	Version     game.Version `json:"version"`
	InstalledAt time.Time    `json:"installedAt"`
	SizeBytes   int64        `json:"sizeBytes,omitempty"`
}

// NewRecord builds a record for (branch, version).
func NewRecord(branch game.Branch, version game.Version, installedAt time.Time, size int64) Record {
	return Record{
		ID:          version.ID(),
		Branch:      branch,
		Version:     version,
		InstalledAt: installedAt.UTC(),
		SizeBytes:   size,
	}
}

// Index is the cached list of installed versions.
type Index struct {
	UpdatedAt time.Time `json:"updatedAt"`
	Records   []Record  `json:"records"`
}

// Find returns the record for (branch, version).
func (i *Index) Find(branch game.Branch, version game.Version) (Record, bool) {
	for _, r := range i.Records {
		if r.Branch == branch && r.Version == version {
			return r, true
		}
	}

	return Record{}, false
}

// Store reads and writes version metadata below a layout.
type Store struct {
	layout game.Layout
	logger logger.Logger
	now    func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New creates a Store for layout.
func New(layout game.Layout, opts ...Option) *Store {
	s := &Store{
		layout: layout,
		logger: logger.NewNoOpLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ReadMetadata reads version.json of (branch, version).
func (s *Store) ReadMetadata(branch game.Branch, version game.Version) (*Record, error) {
	path := s.metadataPath(branch, version)

	//nolint:gosec // path is inside the launcher data root
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s %s", branch, version.ID())
		}

		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(ErrInvalidMetadata, "%s: %v", path, err)
	}

	if rec.Branch != branch || rec.Version != version {
		return nil, errors.Wrapf(ErrInvalidMetadata,
			"%s describes %s %s", path, rec.Branch, rec.Version.ID())
	}

	if rec.ID == "" {
		rec.ID = version.ID()
	}

	return &rec, nil
}

// WriteMetadata atomically writes version.json into dir.
func (*Store) WriteMetadata(dir string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding version metadata")
	}

	return fsutil.WriteFileAtomic(metadataIn(dir), append(data, '\n'))
}

// ScanInstalled walks every branch directory, numeric version directories in
// ascending order, and returns the records whose metadata is readable and
// matches its directory. Everything else counts as not installed.
func (s *Store) ScanInstalled() ([]Record, error) {
	var records []Record

	for _, branch := range game.Branches {
		entries, err := os.ReadDir(s.layout.BranchDir(branch))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, errors.Wrapf(err, "listing %s", s.layout.BranchDir(branch))
		}

		var versions []game.Version

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			v, err := game.ParseVersion(entry.Name())
			if err != nil || v.ID() != entry.Name() {
				continue
			}

			versions = append(versions, v)
		}

		slices.Sort(versions)

		for _, v := range versions {
			rec, err := s.ReadMetadata(branch, v)
			if err != nil {
				s.logger.Debug("skipping version directory", "branch", branch.String(), "version", v.ID(), "error", err)

				continue
			}

			records = append(records, *rec)
		}
	}

	return records, nil
}

// RefreshIndex rescans the version directories and rewrites the index.
func (s *Store) RefreshIndex() (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.refreshLocked()
}

func (s *Store) refreshLocked() (*Index, error) {
	records, err := s.ScanInstalled()
	if err != nil {
		return nil, err
	}

	idx := &Index{Records: records}
	if err := s.saveLocked(idx); err != nil {
		return nil, err
	}

	s.logger.Info("version index rebuilt", "records", len(records))

	return idx, nil
}

// LoadIndex reads the index, rebuilding it when missing or corrupt.
func (s *Store) LoadIndex() (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked()
}

func (s *Store) loadLocked() (*Index, error) {
	path := s.layout.IndexFile()

	//nolint:gosec // path is inside the launcher data root
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "reading %s", path)
		}

		return s.refreshLocked()
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		s.logger.Error("version index corrupt, rebuilding", "path", path, "error", err)

		return s.refreshLocked()
	}

	return &idx, nil
}

// MarkInstalled upserts rec into the index and persists it.
func (s *Store) MarkInstalled(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadLocked()
	if err != nil {
		return err
	}

	idx.Records = slices.DeleteFunc(idx.Records, func(r Record) bool {
		return r.Branch == rec.Branch && r.Version == rec.Version
	})
	idx.Records = append(idx.Records, rec)

	return s.saveLocked(idx)
}

// RemoveInstalled deletes (branch, version) from the index and persists it.
func (s *Store) RemoveInstalled(branch game.Branch, version game.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadLocked()
	if err != nil {
		return err
	}

	idx.Records = slices.DeleteFunc(idx.Records, func(r Record) bool {
		return r.Branch == branch && r.Version == version
	})

	return s.saveLocked(idx)
}

// Installed returns the indexed records of branch, ascending by version.
func (s *Store) Installed(branch game.Branch) ([]Record, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}

	var out []Record

	for _, r := range idx.Records {
		if r.Branch == branch {
			out = append(out, r)
		}
	}

	return out, nil
}

func (s *Store) saveLocked(idx *Index) error {
	slices.SortFunc(idx.Records, compareRecords)
	idx.UpdatedAt = s.now().UTC()

	if idx.Records == nil {
		idx.Records = []Record{}
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding version index")
	}

	if err := fsutil.WriteFileAtomic(s.layout.IndexFile(), append(data, '\n')); err != nil {
		return errors.Wrap(err, "writing version index")
	}

	return nil
}

func (s *Store) metadataPath(branch game.Branch, version game.Version) string {
	return metadataIn(s.layout.VersionDir(branch, version))
}

func metadataIn(dir string) string {
	return dir + string(os.PathSeparator) + game.MetadataFile
}

func compareRecords(a, b Record) int {
	if a.Branch != b.Branch {
		return branchRank(a.Branch) - branchRank(b.Branch)
	}

	switch {
	case a.Version < b.Version:
		return -1
	case a.Version > b.Version:
		return 1
	default:
		return 0
	}
}

func branchRank(b game.Branch) int {
	if i := slices.Index(game.Branches, b); i >= 0 {
		return i
	}

	return len(game.Branches)
}
