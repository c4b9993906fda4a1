package patch

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
)

// ErrIntegrity matches every *IntegrityError.
var ErrIntegrity = errors.New("artifact integrity check failed")

// IntegrityError reports an artifact whose size differs from what the server
// announced. The partial file has already been removed.
type IntegrityError struct {
	Branch   game.Branch
	Edge     Edge
	Expected int64
	Actual   int64
	Reason   string
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("artifact %s %s: expected %d bytes, got %d", e.Branch, e.Edge, e.Expected, e.Actual)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}

	return msg
}

// Unwrap lets errors.Is(err, ErrIntegrity) match.
func (*IntegrityError) Unwrap() error {
	return ErrIntegrity
}
