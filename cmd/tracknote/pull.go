package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracknote/tracknote/internal/syncer"
)

var pullCmd = &cobra.Command{
	Use:   "pull PATH",
	Short: "Sync one note file into the store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		result, err := a.engine.Pull(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		switch result.Outcome {
		case syncer.OutcomeConflict:
			fmt.Printf("%s Conflict on %s: file and store both changed\n",
				warnStyle.Render("⚠"), args[0])
			fmt.Printf("Resolve with 'tracknote resolve %s --use-file' or '--use-db'\n", args[0])
			os.Exit(2)
		case syncer.OutcomeSkipped:
			fmt.Printf("Skipped %s (db_wins policy)\n", args[0])
		default:
			fmt.Printf("%s Synced %s -> project %d\n",
				passStyle.Render("✓"), args[0], result.Project.ID)
		}
	},
}
