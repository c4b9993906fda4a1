package butler

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrPatchApply matches every failed patch application.
	ErrPatchApply = errors.New("patch apply failed")

	// ErrUnavailable is returned when no usable butler binary can be found
	// or provisioned.
	ErrUnavailable = errors.New("patch tool unavailable")

	// ErrTooOld is returned when butler reports a version below the minimum.
	ErrTooOld = errors.New("patch tool too old")
)

// ApplyError describes a failed `butler apply` run.
type ApplyError struct {
	Artifact  string
	TargetDir string
	ExitCode  int
	Output    []string
	Cause     error
}

func (e *ApplyError) Error() string {
	msg := fmt.Sprintf("applying %s to %s: exit code %d", e.Artifact, e.TargetDir, e.ExitCode)

	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	if len(e.Output) > 0 {
		msg += "\n" + strings.Join(e.Output, "\n")
	}

	return msg
}

// Unwrap lets errors.Is match ErrPatchApply.
func (*ApplyError) Unwrap() error {
	return ErrPatchApply
}
