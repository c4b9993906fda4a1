package cache

import (
	"cmp"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidMaxAge is returned when MaxAge is invalid.
	ErrInvalidMaxAge = errors.New("max age must be positive")

	// ErrInvalidMaxSize is returned when MaxSize is invalid.
	ErrInvalidMaxSize = errors.New("max size must be positive")

	// ErrInvalidKeep is returned when a per-branch count is invalid.
	ErrInvalidKeep = errors.New("keep count must be positive")
)

// RetentionPolicy decides which cached artifacts survive a prune.
type RetentionPolicy interface {
	// ShouldRetain returns true if the entry should be kept.
	ShouldRetain(entry Entry, ctx RetentionContext) bool
}

// RetentionContext provides context for retention decisions.
type RetentionContext struct {
	// All is every artifact in the cache.
	All []Entry

	// TotalSize is the size of all artifacts.
	TotalSize int64

	// Now is the current time for age calculations.
	Now time.Time
}

// AgeRetentionPolicy removes artifacts not written for MaxAge.
type AgeRetentionPolicy struct {
	MaxAge time.Duration
}

// NewAgeRetentionPolicy creates a new age retention policy.
func NewAgeRetentionPolicy(maxAge time.Duration) (*AgeRetentionPolicy, error) {
	if maxAge <= 0 {
		return nil, ErrInvalidMaxAge
	}

	return &AgeRetentionPolicy{MaxAge: maxAge}, nil
}

// ShouldRetain implements RetentionPolicy.
func (p *AgeRetentionPolicy) ShouldRetain(entry Entry, ctx RetentionContext) bool {
	return ctx.Now.Sub(entry.ModTime) <= p.MaxAge
}

// SizeRetentionPolicy removes the oldest artifacts until the cache fits in
// MaxSize.
type SizeRetentionPolicy struct {
	MaxSize int64
}

// NewSizeRetentionPolicy creates a new size retention policy.
func NewSizeRetentionPolicy(maxSize int64) (*SizeRetentionPolicy, error) {
	if maxSize <= 0 {
		return nil, ErrInvalidMaxSize
	}

	return &SizeRetentionPolicy{MaxSize: maxSize}, nil
}

// ShouldRetain implements RetentionPolicy.
func (p *SizeRetentionPolicy) ShouldRetain(entry Entry, ctx RetentionContext) bool {
	if ctx.TotalSize <= p.MaxSize {
		return true
	}

	current := ctx.TotalSize

	for _, e := range oldestFirst(ctx.All) {
		if current <= p.MaxSize {
			return true
		}

		if e.Path == entry.Path {
			return false
		}

		current -= e.Size
	}

	return true
}

// KeepLatestPolicy keeps the artifacts of the Keep highest targets of each
// branch. Full installs and patches to those targets both survive.
type KeepLatestPolicy struct {
	Keep int
}

// NewKeepLatestPolicy creates a new per-branch count policy.
func NewKeepLatestPolicy(keep int) (*KeepLatestPolicy, error) {
	if keep <= 0 {
		return nil, ErrInvalidKeep
	}

	return &KeepLatestPolicy{Keep: keep}, nil
}

// ShouldRetain implements RetentionPolicy.
func (p *KeepLatestPolicy) ShouldRetain(entry Entry, ctx RetentionContext) bool {
	var targets []uint64

	for _, e := range ctx.All {
		if e.Branch == entry.Branch && !slices.Contains(targets, uint64(e.Edge.Target)) {
			targets = append(targets, uint64(e.Edge.Target))
		}
	}

	slices.SortFunc(targets, func(a, b uint64) int { return cmp.Compare(b, a) })

	return slices.Contains(targets[:min(p.Keep, len(targets))], uint64(entry.Edge.Target))
}

// CompositeRetentionPolicy keeps an entry only if every policy keeps it.
type CompositeRetentionPolicy struct {
	Policies []RetentionPolicy
}

// NewCompositeRetentionPolicy creates a new composite retention policy.
func NewCompositeRetentionPolicy(policies ...RetentionPolicy) *CompositeRetentionPolicy {
	return &CompositeRetentionPolicy{Policies: policies}
}

// ShouldRetain implements RetentionPolicy.
func (p *CompositeRetentionPolicy) ShouldRetain(entry Entry, ctx RetentionContext) bool {
	for _, policy := range p.Policies {
		if !policy.ShouldRetain(entry, ctx) {
			return false
		}
	}

	return true
}

func oldestFirst(entries []Entry) []Entry {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		if c := a.ModTime.Compare(b.ModTime); c != 0 {
			return c
		}

		return cmp.Compare(a.Path, b.Path)
	})

	return sorted
}
