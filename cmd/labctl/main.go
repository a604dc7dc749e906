package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/lab-portal-api/internal/app"
	"github.com/jwalitptl/lab-portal-api/internal/config"
	"github.com/jwalitptl/lab-portal-api/internal/repository/postgres"
	"github.com/jwalitptl/lab-portal-api/pkg/logger"
)

var (
	cfg   *config.Config
	db    *sqlx.DB
	repos *app.Repositories
	log   *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "labctl",
	Short: "Operations tooling for the lab portal",
	Long: `labctl runs maintenance tasks against the lab portal database.

Configuration is read the same way as the API server (config.yaml plus
LAB_* environment variables); only the database and pricing sections are
required.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadToolConfig(); err != nil {
			return err
		}
		log = app.NewLogger(cfg.Log)
		if db, err = postgres.NewDB(cmd.Context(), cfg.Database); err != nil {
			return err
		}
		repos = app.NewRepositories(db)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if db != nil {
			return db.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateTariffsCmd, resolvePriceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
