package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tracknote/tracknote/internal/daemon"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the roots and sync note files as they change",
	Long: `Run the sync daemon in the foreground.

The daemon performs an initial full scan, then watches the configured
roots for note file changes. Edits are debounced per file: a burst of
save events produces one sync once the file has been quiet for the
configured debounce window (default 1s).

Stop with Ctrl-C; pending debounce timers are cancelled on shutdown.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		d, err := daemon.New(a.engine, &daemon.Config{
			Debounce: a.cfg.Debounce,
			LogFile:  a.cfg.LogFile,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %v (debounce %v)\n", a.cfg.Roots, a.cfg.Debounce)
		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}
