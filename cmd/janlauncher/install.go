package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/color"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/install"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/report"
)

var (
	installBranch  string
	installVersion string
	installForce   bool
	installProfile string
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install a game version",
	Long: `Install a game version on a branch.

The newest installed version below the target (or the profile's active
version) is used as the patch source. Without --version the newest version
on the server is installed.

Examples:
  janlauncher install --branch release --version 12
  janlauncher install --branch beta --force
  janlauncher install --version 12 --profile default`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVarP(&installBranch, "branch", "b", "", "Branch to install from (default: game.default_branch)")
	installCmd.Flags().StringVar(&installVersion, "version", "", "Version to install (default: newest on the server)")
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "Reinstall from scratch even when installed")
	installCmd.Flags().StringVarP(&installProfile, "profile", "p", "", "Profile that receives the installed version")

	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	branch, err := a.branch(installBranch)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	recovered, err := a.orch.Recover(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to recover from an interrupted install")
	}

	if n := len(recovered.Restored); n > 0 {
		fmt.Fprintf(os.Stderr, "Recovered %d installation(s) from an interrupted run\n", n)
	}

	version, err := targetVersion(cmd, a, branch)
	if err != nil {
		return err
	}

	progress := newProgressPrinter(os.Stderr, color.IsTerminal(os.Stderr), a.theme)

	res, err := a.orch.Install(ctx, install.Request{
		Branch:  branch,
		Version: version,
		Force:   installForce,
		Profile: installProfile,
	}, progress.handle)

	progress.finish()

	if err != nil {
		return err
	}

	fmt.Println(report.Summary(res, a.theme))

	return nil
}

// targetVersion parses --version or asks the server for the newest version.
func targetVersion(cmd *cobra.Command, a *app, branch game.Branch) (game.Version, error) {
	if installVersion != "" {
		return game.ParseVersion(installVersion)
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	g, err := a.discovery.Discover(ctx, branch)
	if err != nil {
		return 0, errors.Wrap(err, "failed to discover versions")
	}

	latest := g.MaxVersion()
	if latest == 0 {
		return 0, errors.Newf("no versions published on branch %s", branch)
	}

	return latest, nil
}

// progressPrinter renders install events. On a terminal the line is redrawn
// in place; otherwise each event gets its own line.
type progressPrinter struct {
	w      io.Writer
	redraw bool
	theme  color.Theme
	dirty  bool
}

func newProgressPrinter(w io.Writer, redraw bool, theme color.Theme) *progressPrinter {
	return &progressPrinter{w: w, redraw: redraw, theme: theme}
}

func (p *progressPrinter) handle(ev install.Event) {
	line := p.format(ev)

	if !p.redraw {
		fmt.Fprintln(p.w, line)

		return
	}

	// \x1b[K clears what remains of a longer previous line.
	fmt.Fprintf(p.w, "\r%s\x1b[K", line)

	p.dirty = true
}

func (p *progressPrinter) format(ev install.Event) string {
	stage := p.theme.Stage.Render(fmt.Sprintf("%-14s", ev.Stage))

	if ev.Stage == install.StageFailed {
		stage = p.theme.Failure.Render(fmt.Sprintf("%-14s", ev.Stage))
	}

	if ev.Percent < 0 {
		return fmt.Sprintf("%s      %s", stage, ev.Message)
	}

	return fmt.Sprintf("%s %3.0f%%  %s", stage, ev.Percent, ev.Message)
}

// finish ends a redrawn line so later output starts on a fresh one.
func (p *progressPrinter) finish() {
	if p.dirty {
		fmt.Fprintln(p.w)

		p.dirty = false
	}
}
