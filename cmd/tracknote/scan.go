package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Walk the watched roots and sync every note file",
	Long: `Scan every watched root and pull each matching note file into the
store. Used for initial bootstrap and manual re-sync; the watcher is not
involved.

A scan never aborts on a single file's failure: per-file errors are
collected and reported at the end.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		start := time.Now()
		stats, err := a.engine.ScanAndSync(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during scan: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Scan complete in %v\n", passStyle.Render("✓"),
			time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Scanned:   %d\n", stats.Scanned)
		fmt.Printf("   Synced:    %d\n", stats.Synced)
		if stats.Conflicts > 0 {
			fmt.Printf("   Conflicts: %s\n", warnStyle.Render(fmt.Sprintf("%d", stats.Conflicts)))
		}
		if stats.Skipped > 0 {
			fmt.Printf("   Skipped:   %d\n", stats.Skipped)
		}
		if stats.Errored > 0 {
			fmt.Printf("   Errored:   %s\n", failStyle.Render(fmt.Sprintf("%d", stats.Errored)))
			for _, fe := range stats.Errors {
				fmt.Printf("     %s %s: %s\n", failStyle.Render("✗"), fe.Path, fe.Message)
			}
		}
		if stats.Conflicts > 0 {
			fmt.Printf("\nRun 'tracknote conflicts' to list files needing resolution\n")
		}
	},
}
