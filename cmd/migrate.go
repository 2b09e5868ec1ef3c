package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"offerdesk/offer-service/internal/config"
	"offerdesk/offer-service/internal/db"
	"offerdesk/offer-service/internal/store"
)

var (
	migrateStore       string
	migrateDatabaseURL string
	migrateSQLitePath  string
)

// migrateEnv is the part of the service configuration migrate needs. It is
// parsed on its own so migrate runs without REDIS_URL or JWT_SECRET.
type migrateEnv struct {
	Store       string `env:"OFFER_STORE" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"offers.db"`
}

// loadMigrateEnv reads the environment, then applies any non-empty flags.
func loadMigrateEnv() (migrateEnv, error) {
	var cfg migrateEnv
	if err := env.Parse(&cfg); err != nil {
		return migrateEnv{}, fmt.Errorf("parse env: %w", err)
	}
	if migrateStore != "" {
		cfg.Store = migrateStore
	}
	if migrateDatabaseURL != "" {
		cfg.DatabaseURL = migrateDatabaseURL
	}
	if migrateSQLitePath != "" {
		cfg.SQLitePath = migrateSQLitePath
	}
	return cfg, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  "Apply the embedded schema migrations to the configured store. Safe to run repeatedly and from several replicas.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		cfg, err := loadMigrateEnv()
		if err != nil {
			return err
		}

		switch cfg.Store {
		case config.StorePostgres:
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL or --database-url is required")
			}
			pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			applied, err := store.MigratePostgres(ctx, pool)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintf(out, "applied %s\n", name)
			}
			fmt.Fprintf(out, "%d migration(s) applied\n", len(applied))
			return nil

		case config.StoreSQLite:
			s, err := store.OpenSQLite(ctx, cfg.SQLitePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "sqlite schema up to date at %s\n", cfg.SQLitePath)
			return s.Close()

		default:
			return fmt.Errorf("unknown store %q", cfg.Store)
		}
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateStore, "store", "", "store backend: postgres or sqlite (default $OFFER_STORE or postgres)")
	migrateCmd.Flags().StringVar(&migrateDatabaseURL, "database-url", "", "PostgreSQL connection URL (default $DATABASE_URL)")
	migrateCmd.Flags().StringVar(&migrateSQLitePath, "sqlite-path", "", "SQLite database file (default $SQLITE_PATH or offers.db)")
	rootCmd.AddCommand(migrateCmd)
}
