package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	resolveUseFile bool
	resolveUseDB   bool
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List files whose file and store state diverged",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		entries, err := a.engine.ListConflicts(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			fmt.Printf("%s No conflicts\n", passStyle.Render("✓"))
			return
		}

		fmt.Printf("%s %d file(s) in conflict:\n", warnStyle.Render("⚠"), len(entries))
		for _, e := range entries {
			line := "   " + e.FilePath
			if e.LastSyncedAt != nil {
				line += fmt.Sprintf("  (last synced %s)", e.LastSyncedAt.Format("2006-01-02 15:04"))
			}
			fmt.Println(line)
		}
		fmt.Printf("\nResolve with 'tracknote resolve PATH --use-file' or '--use-db'\n")
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve PATH",
	Short: "Settle a conflicted file in favor of one side",
	Long: `Resolve a conflict recorded on PATH.

  --use-file  re-pulls the file, overwriting the store's changes
  --use-db    pushes the linked project back to the file`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if resolveUseFile == resolveUseDB {
			fmt.Fprintf(os.Stderr, "Error: exactly one of --use-file or --use-db is required\n")
			os.Exit(1)
		}

		a, err := openApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		if err := a.engine.ResolveConflict(cmd.Context(), args[0], resolveUseFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		side := "database"
		if resolveUseFile {
			side = "file"
		}
		fmt.Printf("%s Resolved %s (%s wins)\n", passStyle.Render("✓"), args[0], side)
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveUseFile, "use-file", false, "resolve in favor of the file")
	resolveCmd.Flags().BoolVar(&resolveUseDB, "use-db", false, "resolve in favor of the database")
}
