// Command tracknote keeps a SQLite store of projects and tasks
// synchronized with markdown note files on disk.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tracknote/tracknote/internal/config"
	"github.com/tracknote/tracknote/internal/db"
	"github.com/tracknote/tracknote/internal/ledger"
	"github.com/tracknote/tracknote/internal/store"
	"github.com/tracknote/tracknote/internal/syncer"
)

var cfgFile string

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var rootCmd = &cobra.Command{
	Use:   "tracknote",
	Short: "Bidirectional sync between markdown notes and a task database",
	Long: `tracknote watches a tree of markdown note files and keeps them
synchronized with a local SQLite store of projects and tasks.

Each note carries a YAML header and checkbox lines for tasks; a marker
comment on each checkbox line ties it to its database row, so edits on
either side propagate without disturbing surrounding prose.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default tracknote.yaml in . or ~/.config/tracknote)")
	rootCmd.AddCommand(scanCmd, pullCmd, pushCmd, conflictsCmd, resolveCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired engine with the database handle that backs it.
type app struct {
	cfg    *config.Config
	db     *db.DB
	engine *syncer.Engine
}

// openApp loads config, opens the database, and wires the engine.
func openApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.InitSchema(); err != nil {
		_ = database.Close()
		return nil, err
	}

	engine := syncer.New(
		store.NewSQLiteStore(database.RawDB()),
		ledger.New(database.RawDB()),
		syncer.Config{
			Roots:          cfg.Roots,
			Extension:      cfg.Extension,
			Policy:         syncer.ConflictPolicy(cfg.ConflictPolicy),
			CompletedLimit: cfg.CompletedLimit,
		},
	)

	return &app{cfg: cfg, db: database, engine: engine}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}
