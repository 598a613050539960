package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/calebmh/fedisync/internal/config"
	"github.com/calebmh/fedisync/internal/store"
	"github.com/calebmh/fedisync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show follow cache status",
	Long: `Display the current contents of the follow cache.

Shows:
  - Cache file location and size
  - Cached and confirmed follow counts per platform`,
	Run: func(cmd *cobra.Command, args []string) {
		// Read-only command: account credentials aren't needed to inspect
		// the cache, so skip full validation.
		cfg, err := config.LoadUnvalidated(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		info, err := os.Stat(cfg.Cache.Path)
		if os.IsNotExist(err) {
			fmt.Printf("\n%s Follow cache not initialized\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'fedisync sync' to create it\n\n")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking cache: %v\n", err)
			os.Exit(1)
		}

		st, err := store.Open(cfg.Cache.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		if err := st.InitSchemaContext(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
			os.Exit(1)
		}

		counts, err := st.Counts(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading cache: %v\n", err)
			os.Exit(1)
		}

		// Format file size
		size := info.Size()
		sizeStr := fmt.Sprintf("%d bytes", size)
		if size > 1024*1024 {
			sizeStr = fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
		} else if size > 1024 {
			sizeStr = fmt.Sprintf("%.1f KB", float64(size)/1024)
		}

		fmt.Printf("\n%s Follow Cache Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Location: %s\n", st.Path())
		fmt.Printf("Size: %s\n", sizeStr)
		fmt.Printf("Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))

		if len(counts) == 0 {
			fmt.Printf("\nNo follows cached yet\n")
		}
		for _, pc := range counts {
			fmt.Printf("\n%s:\n", pc.Platform)
			fmt.Printf("   Cached: %d\n", pc.Total)
			fmt.Printf("   Followed: %d\n", pc.Followed)
			fmt.Printf("   Pending: %d\n", pc.Total-pc.Followed)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
