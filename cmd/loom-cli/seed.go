package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loomstudio/loom/pkg/models"
	"github.com/loomstudio/loom/pkg/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := postgresFromEnv()
		if err != nil {
			return err
		}
		defer provider.Close()
		if err := provider.Initialize(); err != nil {
			return fmt.Errorf("postgres initialize failed: %w", err)
		}
		fmt.Println("Migrations completed successfully")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [catalog.yaml]",
	Short: "Seed the model catalog from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := models.LoadCatalog(args[0])
		if err != nil {
			return err
		}

		provider, err := postgresFromEnv()
		if err != nil {
			return err
		}
		defer provider.Close()
		if err := provider.Initialize(); err != nil {
			return fmt.Errorf("postgres initialize failed: %w", err)
		}

		store := provider.GetModelStore()
		for _, m := range catalog {
			if m.ID == "" {
				m.ID = uuid.New().String()
			}
			if err := store.SaveModel(m); err != nil {
				return fmt.Errorf("failed to seed model %q: %w", m.Identifier, err)
			}
		}
		fmt.Printf("Seeded %d model(s)\n", len(catalog))
		return nil
	},
}

func attachSeed(root *cobra.Command) {
	root.AddCommand(migrateCmd, seedCmd)
}

// postgresFromEnv builds a provider from LOOM_POSTGRES_* variables
func postgresFromEnv() (storage.StorageProvider, error) {
	port, _ := strconv.Atoi(getenvDefault("LOOM_POSTGRES_PORT", "5432"))
	provider, err := storage.NewPostgreSQLProvider(storage.PostgreSQLProviderConfig{
		Host:     getenvDefault("LOOM_POSTGRES_HOST", "localhost"),
		Port:     port,
		User:     getenvDefault("LOOM_POSTGRES_USER", "loom"),
		Password: os.Getenv("LOOM_POSTGRES_PASSWORD"),
		Database: getenvDefault("LOOM_POSTGRES_DATABASE", "loom"),
		SSLMode:  getenvDefault("LOOM_POSTGRES_SSL_MODE", "disable"),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres connect failed: %w", err)
	}
	return provider, nil
}

func getenvDefault(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
