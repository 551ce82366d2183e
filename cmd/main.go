package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/senyabanana/engagement-service/internal/db"
	"github.com/senyabanana/engagement-service/internal/repository"
	"github.com/senyabanana/engagement-service/internal/router/config"

	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "engagement",
	Short: "Service engagement negotiation engine",
	Long: `Organizers and providers negotiate the terms of a service request through
numbered proposal cards. Mutual acceptance of a card finalizes an agreement and locks the request.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory with app.env")
	rootCmd.AddCommand(serveCmd(), migrateCmd(), threadCmd(), providerCmd(), tokenCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "INFO: ", log.LstdFlags)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return cfg, fmt.Errorf("cannot load config: %w", err)
	}
	return cfg, nil
}

func runDBMigration(cfg config.Config) error {
	if err := db.RunMigrations(cfg.StorageDriver, db.MigrationURL(cfg)); err != nil {
		return err
	}
	log.Println("db migrated successfully")
	return nil
}

// openStore подключает хранилище выбранного драйвера.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return repository.NewSQLiteStore(conn), nil
	default:
		dbPool, err := db.InitDb(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("error initializing database: %w", err)
		}
		return repository.NewPostgresStore(dbPool), nil
	}
}

// withStore применяет миграции, открывает хранилище и закрывает его после fn.
func withStore(ctx context.Context, fn func(cfg config.Config, store repository.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := runDBMigration(cfg); err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}
