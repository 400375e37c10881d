package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"FinCast/internal/di"
	"FinCast/internal/repository"
	"FinCast/pkg/config"
)

var flagTarget string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the SQLite and ClickHouse tables",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&flagTarget, "target", "auto", "sqlite, clickhouse, all, or auto to follow storage config")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(flagConfig)
	if err != nil {
		return err
	}

	sqlite, clickhouse := false, false
	switch flagTarget {
	case "sqlite":
		sqlite = true
	case "clickhouse":
		clickhouse = true
	case "all":
		sqlite, clickhouse = true, true
	case "auto":
		sqlite = cfg.Storage.Store == "sqlite" || cfg.Storage.Store == "clickhouse"
		clickhouse = cfg.Storage.Store == "clickhouse" || cfg.Storage.Series == "clickhouse"
	default:
		return fmt.Errorf("unknown target %q", flagTarget)
	}

	if sqlite {
		s, err := repository.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		_ = s.Close()
		progress("  sqlite schema ready at %s\n", cfg.SQLite.Path)
	}
	if clickhouse {
		c, err := di.ProvideClickHouseClient(cfg)
		if err != nil {
			return err
		}
		_ = c.Close()
		progress("  clickhouse schema ready in %s\n", cfg.ClickHouse.Database)
	}
	if !sqlite && !clickhouse {
		progress("  nothing to migrate for in-memory storage\n")
	}
	return nil
}
