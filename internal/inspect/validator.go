// Package inspect decides whether an installation directory holds a usable
// client by sniffing the executable header. This is a structural check that
// catches truncated or half-patched files, not a provenance check.
package inspect

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
)

// DefaultMinExecutableSize rejects executables smaller than 1 MiB.
const DefaultMinExecutableSize = 1 << 20

const (
	peOffsetField = 0x3C
	headerProbe   = 64
)

var (
	// ErrMissingExecutable is returned when the client executable does not exist.
	ErrMissingExecutable = errors.New("client executable missing")

	// ErrTooSmall is returned when the executable is below the size floor.
	ErrTooSmall = errors.New("client executable too small")

	// ErrBadHeader is returned when the executable header does not match the platform.
	ErrBadHeader = errors.New("client executable has an unexpected header")
)

var (
	elfMagic   = []byte{0x7F, 'E', 'L', 'F'}
	peMagic    = []byte{'P', 'E', 0, 0}
	machOMagic = [][]byte{
		{0xFE, 0xED, 0xFA, 0xCE},
		{0xFE, 0xED, 0xFA, 0xCF},
		{0xCE, 0xFA, 0xED, 0xFE},
		{0xCF, 0xFA, 0xED, 0xFE},
		{0xCA, 0xFE, 0xBA, 0xBE},
		{0xBE, 0xBA, 0xFE, 0xCA},
	}
)

// Validator checks installation directories for one platform.
type Validator struct {
	platform game.Platform
	minSize  int64
}

// Option configures a Validator.
type Option func(*Validator)

// WithMinSize sets the executable size floor.
func WithMinSize(n int64) Option {
	return func(v *Validator) {
		if n > 0 {
			v.minSize = n
		}
	}
}

// New creates a Validator for platform.
func New(platform game.Platform, opts ...Option) *Validator {
	v := &Validator{
		platform: platform,
		minSize:  DefaultMinExecutableSize,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// IsValid reports whether dir holds a usable installation.
func (v *Validator) IsValid(dir string) bool {
	return v.Check(dir) == nil
}

// ExecutablePath returns the client executable expected below dir.
func (v *Validator) ExecutablePath(dir string) string {
	rel, _ := v.platform.ClientExecutable()

	return filepath.Join(dir, rel)
}

// Check is IsValid with the reason for rejection.
func (v *Validator) Check(dir string) error {
	path := v.ExecutablePath(dir)
	_, kind := v.platform.ClientExecutable()

	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(ErrMissingExecutable, "%s", path)
	}

	if !info.Mode().IsRegular() {
		return errors.Wrapf(ErrMissingExecutable, "%s is not a regular file", path)
	}

	if info.Size() < v.minSize {
		return errors.Wrapf(ErrTooSmall, "%s is %d bytes, need at least %d", path, info.Size(), v.minSize)
	}

	//nolint:gosec // path is inside the launcher data root
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close() //nolint:errcheck // read-only

	if err := checkHeader(f, kind); err != nil {
		return errors.Wrapf(err, "%s", path)
	}

	return nil
}

func checkHeader(f io.ReaderAt, kind game.ExecutableKind) error {
	head := make([]byte, headerProbe)

	n, err := f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "reading header")
	}

	head = head[:n]

	switch kind {
	case game.ExecutablePE:
		return checkPE(f, head)
	case game.ExecutableELF:
		if !bytes.HasPrefix(head, elfMagic) {
			return errors.Wrap(ErrBadHeader, "missing ELF magic")
		}
	case game.ExecutableMachO:
		for _, magic := range machOMagic {
			if bytes.HasPrefix(head, magic) {
				return nil
			}
		}

		return errors.Wrap(ErrBadHeader, "missing Mach-O magic")
	default:
		return errors.Wrapf(ErrBadHeader, "unknown executable kind %s", kind)
	}

	return nil
}

// checkPE follows e_lfanew from the DOS header to the PE signature.
func checkPE(f io.ReaderAt, head []byte) error {
	if len(head) < peOffsetField+4 || head[0] != 'M' || head[1] != 'Z' {
		return errors.Wrap(ErrBadHeader, "missing MZ header")
	}

	offset := int64(binary.LittleEndian.Uint32(head[peOffsetField:]))
	sig := make([]byte, len(peMagic))

	if _, err := f.ReadAt(sig, offset); err != nil {
		return errors.Wrapf(ErrBadHeader, "PE signature offset %d unreadable", offset)
	}

	if !bytes.Equal(sig, peMagic) {
		return errors.Wrapf(ErrBadHeader, "no PE signature at offset %d", offset)
	}

	return nil
}
