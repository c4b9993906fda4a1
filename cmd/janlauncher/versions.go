package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/report"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/store"
)

var (
	versionsBranch string
	versionsJSON   bool
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Manage installed versions",
	Long: `Manage installed game versions.

Subcommands:
  list    List installed versions
  rescan  Rebuild the version index from disk
  remove  Delete an installed version`,
}

var versionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed versions",
	Long: `List installed versions that pass validation. Versions active in a
profile are marked with *.

Examples:
  janlauncher versions list
  janlauncher versions list --branch beta --json`,
	Args: cobra.NoArgs,
	RunE: runVersionsList,
}

var versionsRescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Rebuild the version index from disk",
	Long: `Recover interrupted installs, then rebuild the version index from the
version directories on disk.`,
	Args: cobra.NoArgs,
	RunE: runVersionsRescan,
}

var versionsRemoveCmd = &cobra.Command{
	Use:   "remove <version>",
	Short: "Delete an installed version",
	Long: `Delete an installed version. Versions active in a profile are refused.

Examples:
  janlauncher versions remove 7 --branch release`,
	Args: cobra.ExactArgs(1),
	RunE: runVersionsRemove,
}

func init() {
	versionsCmd.PersistentFlags().StringVarP(&versionsBranch, "branch", "b", "", "Branch (list: all branches when omitted)")
	versionsListCmd.Flags().BoolVar(&versionsJSON, "json", false, "Print records as JSON")

	versionsCmd.AddCommand(versionsListCmd)
	versionsCmd.AddCommand(versionsRescanCmd)
	versionsCmd.AddCommand(versionsRemoveCmd)
	rootCmd.AddCommand(versionsCmd)
}

func runVersionsList(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	branches := game.Branches

	if versionsBranch != "" {
		b, err := game.ParseBranch(versionsBranch)
		if err != nil {
			return err
		}

		branches = []game.Branch{b}
	}

	records := []store.Record{}

	for _, b := range branches {
		rs, err := a.orch.Installed(b)
		if err != nil {
			return errors.Wrapf(err, "failed to list %s versions", b)
		}

		records = append(records, rs...)
	}

	if versionsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No versions installed")

		return nil
	}

	fmt.Println(report.Versions(records, a.activeSet(), a.theme))

	return nil
}

func runVersionsRescan(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	recovered, err := a.orch.Recover(ctx)
	if err != nil {
		return err
	}

	idx, err := a.orch.Store().RefreshIndex()
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d version(s)", len(idx.Records))

	if !recovered.Empty() {
		fmt.Printf(", restored %d, removed %d leftover backup(s) and %d staging dir(s)",
			len(recovered.Restored), len(recovered.RemovedBackups), len(recovered.RemovedStaging))
	}

	fmt.Println()

	return nil
}

func runVersionsRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	branch, err := a.branch(versionsBranch)
	if err != nil {
		return err
	}

	version, err := game.ParseVersion(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	if err := a.orch.Remove(ctx, branch, version); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.Newf("%s %s is not installed", branch, version.ID())
		}

		return err
	}

	fmt.Printf("%s removed %s %s\n", a.theme.Success.Render("✓"), branch, version.ID())

	return nil
}
