package install

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch"
)

var (
	// ErrValidation is returned when a staged tree fails the executable check.
	ErrValidation = errors.New("installation validation failed")

	// ErrSwap is returned when promoting the staging tree failed. Rollback has
	// been attempted; its own failure is attached as a secondary error.
	ErrSwap = errors.New("installation swap failed")

	// ErrVersionInUse is returned when removing a version a profile has active.
	ErrVersionInUse = errors.New("version is active in a profile")
)

// StageError attaches the install stage, target and edge to a failure.
type StageError struct {
	Stage   Stage
	Branch  game.Branch
	Version game.Version
	Edge    *patch.Edge
	Err     error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Branch, e.Version.ID(), e.Stage)
	if e.Edge != nil {
		msg += " edge " + e.Edge.String()
	}

	return msg + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, req Request, edge *patch.Edge, err error) error {
	return &StageError{
		Stage:   stage,
		Branch:  req.Branch,
		Version: req.Version,
		Edge:    edge,
		Err:     err,
	}
}
