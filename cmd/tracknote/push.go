package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push PROJECT_ID",
	Short: "Write a project's current state to its note file",
	Long: `Push a project from the store to disk. The target is the project's
linked file, or a new file named after its title under the first root.
Prior file content is preserved apart from the checked state of checkbox
lines whose marker matches a task.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid project id %q\n", args[0])
			os.Exit(1)
		}

		a, err := openApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		if err := a.engine.Push(cmd.Context(), id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Pushed project %d\n", passStyle.Render("✓"), id)
	},
}
