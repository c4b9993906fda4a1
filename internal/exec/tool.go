package exec

//go:generate mockgen -source=tool.go -destination=tool_mock.go -package=exec

import (
	"os/exec"

	"github.com/cockroachdb/errors"
)

// ToolChecker resolves external tools on PATH.
type ToolChecker interface {
	// LookPath resolves a tool to its absolute path. A missing tool yields a
	// *ToolNotFoundError.
	LookPath(tool string) (string, error)
}

type toolChecker struct{}

// NewToolChecker creates a ToolChecker backed by os/exec.
func NewToolChecker() ToolChecker {
	return toolChecker{}
}

func (toolChecker) LookPath(tool string) (string, error) {
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", &ToolNotFoundError{Tool: tool, Err: err}
	}

	return path, nil
}

// ToolNotFoundError is returned when a tool is not on PATH or not executable.
type ToolNotFoundError struct {
	Tool string
	Err  error
}

func (e *ToolNotFoundError) Error() string {
	return "tool not found in PATH: " + e.Tool
}

// Unwrap returns the lookup error, usually exec.ErrNotFound.
func (e *ToolNotFoundError) Unwrap() error {
	return e.Err
}

// IsToolNotFound reports whether err is a *ToolNotFoundError.
func IsToolNotFound(err error) bool {
	var nf *ToolNotFoundError

	return errors.As(err, &nf)
}
