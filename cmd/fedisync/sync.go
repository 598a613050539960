package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/calebmh/fedisync/internal/config"
	"github.com/calebmh/fedisync/internal/fediverse"
	"github.com/calebmh/fedisync/internal/reconcile"
	"github.com/calebmh/fedisync/internal/source"
	"github.com/calebmh/fedisync/internal/store"
	"github.com/calebmh/fedisync/internal/ui"
)

var syncRefresh bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile source follows against the fediverse",
	Long: `Run one reconciliation pass over every configured source platform.

For each platform this:
  1. Loads the cached follow list, fetching from the platform on a miss
  2. Maps every handle to its bridge handle
  3. Searches for the bridged account and follows it on an exact match
  4. Records confirmed follows in the cache

Records whose follow hasn't been confirmed stay in the cache and are
retried on the next run. With --refresh, the cache rows for every source
platform are cleared first, forcing a full re-fetch.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := cmd.Context()
		st, driver, err := buildDriver(ctx, cfg)
		if err != nil {
			if errors.Is(err, source.ErrAuthentication) {
				fmt.Fprintf(os.Stderr, "%s Login rejected: %v\n", ui.RenderFail("✗"), err)
			} else {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			os.Exit(1)
		}
		defer st.Close()

		fmt.Printf("%s Reconciling follows...\n", ui.RenderAccent("🔄"))
		start := time.Now()

		summary, err := driver.Run(ctx, reconcile.Options{Refresh: syncRefresh})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		printSummary(summary, time.Since(start))
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncRefresh, "refresh", false, "clear cached follows and re-fetch before reconciling")
	rootCmd.AddCommand(syncCmd)
}

// buildDriver opens the follow cache and constructs the configured sources,
// the follower, and the reconciliation driver. On error the cache is closed
// before returning.
func buildDriver(ctx context.Context, cfg *config.Config) (*store.Store, *reconcile.Driver, error) {
	st, err := store.Open(cfg.Cache.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := st.InitSchemaContext(ctx); err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	var sources []source.Source

	if cfg.HasBluesky() {
		if err := promptBlueskyPassword(cfg); err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		bluesky, err := source.NewBluesky(ctx, &cfg.Bluesky, componentLogger("[bluesky] "))
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		sources = append(sources, bluesky)
	}

	if cfg.HasThreads() {
		sources = append(sources, source.NewThreads(cfg.Threads.ExportFile, componentLogger("[threads] ")))
	}

	follower := fediverse.New(&cfg.Mastodon, st, componentLogger("[fediverse] "))
	driver := reconcile.New(st, follower, sources, componentLogger("[reconcile] "))

	return st, driver, nil
}

// printSummary renders the per-platform run tallies.
func printSummary(summary *reconcile.Summary, elapsed time.Duration) {
	fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), elapsed.Round(time.Millisecond))

	for _, ps := range summary.Platforms {
		origin := "fetched"
		if ps.FromCache {
			origin = "cached"
		}
		fmt.Printf("   %s (%s): %d attempted, %d followed, %d no match, %d search failed, %d follow failed\n",
			ps.Platform, origin, ps.Attempted, ps.Followed, ps.NoMatch, ps.SearchFailed, ps.FollowFailed)
	}

	if summary.Followed() == 0 {
		fmt.Printf("   %s No new follows confirmed this run\n", ui.RenderWarn("⚠"))
	}
}
