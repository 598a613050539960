package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/calebmh/fedisync/internal/follow"
	"github.com/calebmh/fedisync/internal/reconcile"
	"github.com/calebmh/fedisync/internal/ui"
	"github.com/calebmh/fedisync/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reconcile whenever the Threads export file changes (foreground)",
	Long: `Watch the configured Threads export file and reconcile on change.

An initial reconcile runs at startup. Afterwards, every time the export
file is replaced, the Threads cache rows are cleared and a fresh
reconcile picks up the new follow list. Handy while iterating on a newly
downloaded export.

Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if !cfg.HasThreads() {
			fmt.Fprintf(os.Stderr, "Error: watch requires threads.export_file to be configured\n")
			os.Exit(1)
		}

		ctx := cmd.Context()
		st, driver, err := buildDriver(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		wcfg := watch.DefaultConfig()
		wcfg.Logger = componentLogger("[watch] ")
		if watchDebounce > 0 {
			wcfg.DebounceInterval = watchDebounce
		}

		refresh := func(ctx context.Context) error {
			return st.ClearPlatform(ctx, follow.Threads)
		}
		reconcileOnce := func(ctx context.Context) error {
			start := time.Now()
			summary, err := driver.Run(ctx, reconcile.Options{})
			if err != nil {
				return err
			}
			printSummary(summary, time.Since(start))
			return nil
		}

		watcher, err := watch.New(cfg.Threads.ExportFile, refresh, reconcileOnce, wcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating watcher: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Watching %s\n", ui.RenderAccent("👀"), cfg.Threads.ExportFile)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		if err := watcher.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Watcher stopped with error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "debounce interval for export file changes (default 2s)")
	rootCmd.AddCommand(watchCmd)
}
