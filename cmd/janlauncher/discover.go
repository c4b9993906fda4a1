package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/report"
)

var discoverBranch string

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List patches published for a branch",
	Long: `Probe the patch server and print every patch edge found on a branch.

Examples:
  janlauncher discover
  janlauncher discover --branch beta`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVarP(&discoverBranch, "branch", "b", "", "Branch to probe (default: game.default_branch)")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	branch, err := a.branch(discoverBranch)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	g, err := a.discovery.Discover(ctx, branch)
	if err != nil {
		return err
	}

	if g.Len() == 0 {
		fmt.Printf("No patches published on %s\n", branch)

		return nil
	}

	fmt.Println(report.Edges(g.Edges(), a.theme))
	fmt.Printf("Latest %s version: %s\n", branch, a.theme.Version.Render(g.MaxVersion().ID()))

	return nil
}
