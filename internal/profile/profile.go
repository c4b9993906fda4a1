// Package profile stores launcher profiles and the game version each profile
// has active per branch.
package profile

import (
	"encoding/json"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/fsutil"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
)

// ErrInvalidName is returned for an empty profile name.
var ErrInvalidName = errors.New("invalid profile name")

// Profile is one launcher profile.
type Profile struct {
	Name      string                       `json:"name"`
	Active    map[game.Branch]game.Version `json:"active,omitempty"`
	UpdatedAt time.Time                    `json:"updatedAt"`
}

type document struct {
	Profiles []Profile `json:"profiles"`
}

// FileStore keeps profiles in a single JSON file.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// List returns all profiles sorted by name.
func (s *FileStore) List() ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	return doc.Profiles, nil
}

// ActiveVersion returns the version profile has active on branch.
func (s *FileStore) ActiveVersion(name string, branch game.Branch) (game.Version, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return 0, false, err
	}

	i := doc.find(name)
	if i < 0 {
		return 0, false, nil
	}

	v, ok := doc.Profiles[i].Active[branch]

	return v, ok && v > 0, nil
}

// SetActiveVersion records version as active for profile on branch, creating
// the profile when needed.
func (s *FileStore) SetActiveVersion(name string, branch game.Branch, version game.Version) error {
	if name == "" {
		return ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	i := doc.find(name)
	if i < 0 {
		doc.Profiles = append(doc.Profiles, Profile{Name: name})
		i = len(doc.Profiles) - 1
	}

	p := &doc.Profiles[i]
	if p.Active == nil {
		p.Active = make(map[game.Branch]game.Version)
	}

	p.Active[branch] = version
	p.UpdatedAt = s.now().UTC()

	return s.save(doc)
}

// InUse reports whether any profile has (branch, version) active.
func (s *FileStore) InUse(branch game.Branch, version game.Version) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return false, err
	}

	for _, p := range doc.Profiles {
		if p.Active[branch] == version {
			return true, nil
		}
	}

	return false, nil
}

func (s *FileStore) load() (*document, error) {
	//nolint:gosec // path is inside the launcher data root
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{}, nil
		}

		return nil, errors.Wrapf(err, "reading %s", s.path)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", s.path)
	}

	return &doc, nil
}

func (s *FileStore) save(doc *document) error {
	slices.SortFunc(doc.Profiles, func(a, b Profile) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding profiles")
	}

	return fsutil.WriteFileAtomic(s.path, append(data, '\n'))
}

func (d *document) find(name string) int {
	return slices.IndexFunc(d.Profiles, func(p Profile) bool { return p.Name == name })
}
