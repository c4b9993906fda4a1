package game

import (
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/errors"
)

// Platform identifies the OS/architecture pair patches are published for.
type Platform struct {
	OS   string
	Arch string
}

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Validate rejects platforms the patch server does not publish for.
func (p Platform) Validate() error {
	switch p.OS {
	case "windows", "linux", "darwin":
	default:
		return errors.Wrapf(ErrConfig, "unsupported operating system %q", p.OS)
	}

	switch p.Arch {
	case "amd64", "arm64":
	default:
		return errors.Wrapf(ErrConfig, "unsupported architecture %q", p.Arch)
	}

	return nil
}

// ExecutableKind names the binary format expected for the client executable.
type ExecutableKind int

// Executable formats.
const (
	ExecutablePE ExecutableKind = iota
	ExecutableELF
	ExecutableMachO
)

func (k ExecutableKind) String() string {
	switch k {
	case ExecutablePE:
		return "PE"
	case ExecutableELF:
		return "ELF"
	case ExecutableMachO:
		return "Mach-O"
	default:
		return "unknown"
	}
}

// ClientExecutable returns the client executable path relative to an
// installation root, and its expected format.
func (p Platform) ClientExecutable() (string, ExecutableKind) {
	switch p.OS {
	case "windows":
		return filepath.Join("Client", "HytaleClient.exe"), ExecutablePE
	case "darwin":
		return filepath.Join("Client", "Hytale.app", "Contents", "MacOS", "HytaleClient"), ExecutableMachO
	default:
		return filepath.Join("Client", "HytaleClient"), ExecutableELF
	}
}

// ExeSuffix returns ".exe" on windows and "" elsewhere.
func (p Platform) ExeSuffix() string {
	if p.OS == "windows" {
		return ".exe"
	}

	return ""
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}
