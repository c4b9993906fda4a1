package main

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/cache"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/report"
)

const defaultCacheMaxAge = 30 * 24 * time.Hour

var (
	cacheMaxAge  time.Duration
	cacheMaxSize string
	cacheKeep    int
	cacheDryRun  bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage downloaded patch artifacts",
	Long: `Manage downloaded patch artifacts.

Subcommands:
  prune  Remove cached artifacts by age, size or count`,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cached artifacts",
	Long: `Remove cached patch artifacts. An artifact is kept only when every
given limit keeps it.

Examples:
  janlauncher cache prune                    # older than 30 days
  janlauncher cache prune --max-size 2GB
  janlauncher cache prune --keep 2 --dry-run`,
	Args: cobra.NoArgs,
	RunE: runCachePrune,
}

func init() {
	cachePruneCmd.Flags().DurationVar(&cacheMaxAge, "max-age", defaultCacheMaxAge, "Remove artifacts older than this (0 disables)")
	cachePruneCmd.Flags().StringVar(&cacheMaxSize, "max-size", "", "Shrink the cache below this size, oldest first (e.g. 2GB)")
	cachePruneCmd.Flags().IntVar(&cacheKeep, "keep", 0, "Keep artifacts of the N newest targets per branch")
	cachePruneCmd.Flags().BoolVar(&cacheDryRun, "dry-run", false, "Show what would be removed")

	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCachePrune(_ *cobra.Command, _ []string) error {
	policy, err := cachePolicy()
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := cache.New(a.layout, cache.WithLogger(a.log)).Prune(policy, cacheDryRun)
	if err != nil {
		return err
	}

	verb := "Removed"
	if cacheDryRun {
		verb = "Would remove"
	}

	for _, e := range res.Removed {
		fmt.Printf("  %s %s (%s)\n", e.Branch, e.Edge, report.Bytes(e.Size))
	}

	fmt.Printf("%s %d artifact(s), %s; kept %d\n", verb, len(res.Removed), report.Bytes(res.FreedBytes), res.Kept)

	return nil
}

func cachePolicy() (cache.RetentionPolicy, error) {
	var policies []cache.RetentionPolicy

	if cacheMaxAge > 0 {
		p, err := cache.NewAgeRetentionPolicy(cacheMaxAge)
		if err != nil {
			return nil, err
		}

		policies = append(policies, p)
	}

	if cacheMaxSize != "" {
		size, err := humanize.ParseBytes(cacheMaxSize)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "invalid --max-size %q", cacheMaxSize), game.ErrConfig)
		}

		p, err := cache.NewSizeRetentionPolicy(int64(size))
		if err != nil {
			return nil, errors.Mark(err, game.ErrConfig)
		}

		policies = append(policies, p)
	}

	if cacheKeep > 0 {
		p, err := cache.NewKeepLatestPolicy(cacheKeep)
		if err != nil {
			return nil, err
		}

		policies = append(policies, p)
	}

	if len(policies) == 0 {
		return nil, errors.Mark(errors.New("no limit given: set --max-age, --max-size or --keep"), game.ErrConfig)
	}

	return cache.NewCompositeRetentionPolicy(policies...), nil
}
