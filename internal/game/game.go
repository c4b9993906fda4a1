// Package game holds the domain vocabulary shared by the installation engine:
// release branches, version numbers, target platforms and the on-disk layout
// of the launcher data root.
package game

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrConfig marks invalid input that must never be retried: unknown branches,
// malformed versions, unsupported platforms.
var ErrConfig = errors.New("invalid configuration")

// Branch is a release channel of the game.
type Branch string

// Known branches.
const (
	BranchRelease    Branch = "release"
	BranchPreRelease Branch = "pre-release"
	BranchBeta       Branch = "beta"
	BranchAlpha      Branch = "alpha"
)

// Branches lists every known branch in a fixed order.
var Branches = []Branch{BranchRelease, BranchPreRelease, BranchBeta, BranchAlpha}

// ParseBranch validates s as a known branch.
func ParseBranch(s string) (Branch, error) {
	b := Branch(strings.TrimSpace(s))

	for _, known := range Branches {
		if b == known {
			return b, nil
		}
	}

	return "", errors.Wrapf(ErrConfig, "unknown branch %q", s)
}

func (b Branch) String() string {
	return string(b)
}

// Version is a positive build number within a branch. Zero is reserved for
// "nothing installed" and only appears as the source of a full-install edge.
type Version uint64

// ParseVersion parses a version id such as "12".
func ParseVersion(id string) (Version, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrConfig, "version %q is not a number", id)
	}

	if n == 0 {
		return 0, errors.Wrapf(ErrConfig, "version %q must be positive", id)
	}

	return Version(n), nil
}

// ID returns the decimal version id used for directory and index keys.
func (v Version) ID() string {
	return strconv.FormatUint(uint64(v), 10)
}

func (v Version) String() string {
	return v.ID()
}
