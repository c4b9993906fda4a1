package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/config"
)

const shortCommitLength = 12

// Build information set by ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print janlauncher build information and the platform it installs for.",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Print(versionString())
	},
}

// versionRequested is set by the root --version/-v flag.
var versionRequested bool

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Flags().BoolVarP(&versionRequested, "version", "v", false, "Print version information")
}

func checkVersionFlag() {
	if versionRequested {
		fmt.Print(versionString())
		os.Exit(ExitCodeOK)
	}
}

func versionString() string {
	var b strings.Builder

	fmt.Fprintf(&b, "janlauncher %s\n", version)
	fmt.Fprintf(&b, "  commit:    %s\n", buildRevision())
	fmt.Fprintf(&b, "  built:     %s\n", date)
	fmt.Fprintf(&b, "  go:        %s\n", runtime.Version())
	fmt.Fprintf(&b, "  platform:  %s\n", game.CurrentPlatform())
	fmt.Fprintf(&b, "  butler:    >= %s\n", config.DefaultPatcherMinVersion)

	return b.String()
}

// buildRevision prefers the ldflags commit and falls back to VCS stamping.
func buildRevision() string {
	if commit != "unknown" {
		return commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit
	}

	var rev string

	modified := false

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value[:min(shortCommitLength, len(s.Value))]
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	if rev == "" {
		return commit
	}

	if modified {
		rev += "-dirty"
	}

	return rev
}
