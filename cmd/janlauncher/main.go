// Package main provides the CLI entry point for janlauncher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/color"
	internalconfig "github.com/janekdeveloper/JanLauncher-sub000/internal/config"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/config"
)

const (
	// ExitCodeOK indicates success.
	ExitCodeOK = 0

	// ExitCodeError indicates a failed command.
	ExitCodeError = 1

	// ExitCodeConfig indicates invalid configuration or arguments.
	ExitCodeConfig = 2

	defaultTimeout = 2 * time.Hour
)

var (
	debugMode    bool
	traceMode    bool
	configPath   string
	dataDirFlag  string
	patchURLFlag string
	butlerFlag   string
	noColorFlag  bool
	metricsFile  string
	timeoutFlag  time.Duration
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		if errors.Is(err, game.ErrConfig) {
			return ExitCodeConfig
		}

		return ExitCodeError
	}

	return ExitCodeOK
}

var rootCmd = &cobra.Command{
	Use:   "janlauncher",
	Short: "Game version and patch manager",
	Long: `janlauncher installs game versions per branch, walking the chain of
incremental patches published by the patch server and falling back to a
full install when a patch cannot be applied.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		checkVersionFlag()
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.BoolVar(&debugMode, "debug", false, "Enable debug logging")
	flags.BoolVar(&traceMode, "trace", false, "Enable trace logging")
	flags.StringVarP(
		&configPath,
		"config",
		"c",
		"",
		"Path to configuration file (default: $XDG_CONFIG_HOME/janlauncher/config.toml)",
	)
	flags.StringVar(&dataDirFlag, "data-dir", "", "Launcher data root (overrides game.data_dir)")
	flags.StringVar(&patchURLFlag, "patch-base-url", "", "Patch server root (overrides network.patch_base_url)")
	flags.StringVar(&butlerFlag, "butler", "", "Path to a butler binary (overrides patcher.path)")
	flags.BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	flags.DurationVar(&timeoutFlag, "timeout", defaultTimeout, "Upper bound for network commands")
}

// loadConfig loads configuration from defaults, the config file, the
// environment and CLI flags.
func loadConfig() (*config.Config, error) {
	loader := internalconfig.NewKoanfLoader()
	if configPath != "" {
		loader = internalconfig.NewKoanfLoaderWithPath(configPath)
	}

	cfg, err := loader.Load(buildFlagsMap())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	return cfg, nil
}

// buildFlagsMap converts CLI flags to a map for the config provider.
func buildFlagsMap() map[string]any {
	flags := make(map[string]any)

	if dataDirFlag != "" {
		flags["data-dir"] = dataDirFlag
	}

	if patchURLFlag != "" {
		flags["patch-base-url"] = patchURLFlag
	}

	if butlerFlag != "" {
		flags["butler"] = butlerFlag
	}

	return flags
}

// commandContext bounds a command by --timeout and cancels it on SIGINT or
// SIGTERM.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	if timeoutFlag <= 0 {
		return ctx, stop
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutFlag)

	return ctx, func() {
		cancel()
		stop()
	}
}

func theme() color.Theme {
	return color.NewTheme(color.Enabled(noColorFlag) && color.IsTerminal(os.Stdout))
}
