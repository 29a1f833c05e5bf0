package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/ride-progress/internal/bootstrap"
	"github.com/kirillkom/ride-progress/internal/config"
	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/observability/logging"
)

var (
	app      *bootstrap.App
	dbPath   string
	userID   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ridectl",
	Short: "Track indoor cycling progress from game screenshots",
	Long: `ridectl imports screenshots of the cycling game's progress report and
ride menu screens, keeps a timeline of snapshots and compares them.

QUICK START:

  $ ridectl import ~/Pictures/zwift/*.png --save   # Read and save screenshots
  $ ridectl history                                # Timeline, newest first
  $ ridectl compare <id>                           # Changes since the previous snapshot
  $ ridectl trend ftp                              # FTP over time
  $ ridectl trend ftp --mode between_reports       # FTP change per report

ARCHIVES:

  $ ridectl export --format xlsx -o progress.xlsx
  $ ridectl restore backup.json

STORAGE:

  Without DATABASE_DRIVER the CLI keeps its data in a local SQLite file
  (see --db). Set DATABASE_DRIVER=postgres and POSTGRES_DSN to share the
  server's database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		_ = godotenv.Load()

		cfg := config.Load()
		if os.Getenv("DATABASE_DRIVER") == "" {
			cfg.DatabaseDriver = "sqlite"
		}
		if dbPath != "" {
			cfg.SQLitePath = dbPath
		}
		slog.SetDefault(logging.New(os.Stderr, "ridectl", logLevel))

		var err error
		app, err = bootstrap.New(cmd.Context(), cfg, bootstrap.Options{})
		if err != nil {
			return fmt.Errorf("failed to open ride store: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app != nil {
			app.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default from SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "Rider the snapshots belong to")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for diagnostics on stderr")
}

func session() domain.Session {
	return domain.NewSession(userID, "")
}
