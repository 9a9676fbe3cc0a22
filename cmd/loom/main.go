// Package main is the entry point for the loom server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/loomstudio/loom/pkg/api"
	"github.com/loomstudio/loom/pkg/billing"
	"github.com/loomstudio/loom/pkg/blob"
	"github.com/loomstudio/loom/pkg/cache"
	"github.com/loomstudio/loom/pkg/config"
	"github.com/loomstudio/loom/pkg/gateway"
	"github.com/loomstudio/loom/pkg/janitor"
	"github.com/loomstudio/loom/pkg/llm"
	"github.com/loomstudio/loom/pkg/services"
	"github.com/loomstudio/loom/pkg/storage"
)

var (
	// Command-line flags
	configPath = flag.String("config", "", "Path to config file")
	version    = flag.Bool("version", false, "Print version information")
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "loom"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Application failed: %v", err)
		}
	case <-stop:
		log.Println("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			log.Fatalf("Error during shutdown: %v", err)
		}
	}
}

// loadConfig loads the configuration from the specified path or creates a
// default one
func loadConfig() (*config.Config, error) {
	var cfg *config.Config

	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", *configPath, err)
		}
	} else {
		locations := []string{
			"./config.json",
			"./configs/config.json",
			filepath.Join(os.Getenv("HOME"), ".loom", "config.json"),
			"/etc/loom/config.json",
		}

		for _, path := range locations {
			if loadedCfg, err := config.LoadConfig(path); err == nil {
				cfg = loadedCfg
				break
			}
		}

		// If no config file is found, create a default one
		if cfg == nil {
			cfg = config.DefaultConfig()
			config.ApplyEnvOverrides(cfg)

			defaultPath := filepath.Join(os.Getenv("HOME"), ".loom", "config.json")
			if err := config.SaveConfig(cfg, defaultPath); err != nil {
				return nil, fmt.Errorf("failed to save default config: %w", err)
			}
			fmt.Printf("Created default configuration at %s\n", defaultPath)
		}
	}

	// Generate a random JWT secret if not set
	if cfg.Auth.JWTSecret == "" {
		secret, err := generateRandomKey(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.Auth.JWTSecret = secret
	}

	return cfg, nil
}

// generateRandomKey generates a random key of the specified length
func generateRandomKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// App represents the loom application
type App struct {
	config          *config.Config
	server          *api.Server
	storageProvider storage.StorageProvider
	janitor         *janitor.Janitor
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config) (*App, error) {
	storageProvider, err := newStorageProvider(cfg)
	if err != nil {
		return nil, err
	}
	if err := storageProvider.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	blobStore, err := newBlobStore(cfg)
	if err != nil {
		return nil, err
	}

	modelCache, err := newModelCache(cfg)
	if err != nil {
		return nil, err
	}

	jwtService := services.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiration)
	accountService := services.NewAccountService(storageProvider.GetAccountStore()).
		WithJWTService(jwtService).
		WithInitialCredits(cfg.Auth.InitialCredits)

	billingProvider := billing.NewHTTPProvider(billing.HTTPProviderConfig{
		BaseURL:   cfg.Billing.BaseURL,
		SecretKey: cfg.Billing.SecretKey,
	})
	billingService := billing.NewService(
		billingProvider,
		storageProvider.GetCustomerStore(),
		storageProvider.GetAccountStore(),
		cfg.Billing.AppBaseURL+"/billing/success",
		cfg.Billing.AppBaseURL+"/billing/cancel",
	)

	gatewayClient := gateway.NewClient(gateway.ClientConfig{
		BaseURL:         cfg.Gateway.BaseURL,
		APIKey:          cfg.Gateway.APIKey,
		PollInterval:    time.Duration(cfg.Gateway.PollIntervalMs) * time.Millisecond,
		MaxPollAttempts: cfg.Gateway.MaxPollAttempts,
	})

	llmClient := llm.NewClient(llm.ClientConfig{
		BaseURL:      cfg.LLM.BaseURL,
		APIKey:       cfg.LLM.APIKey,
		DefaultModel: cfg.LLM.DefaultModel,
	})

	server := api.NewServer(cfg, api.Dependencies{
		Provider:       storageProvider,
		BlobStore:      blobStore,
		AccountService: accountService,
		JWTService:     jwtService,
		Billing:        billingService,
		Gateway:        gatewayClient,
		LLM:            llmClient,
		ModelCache:     modelCache,
	})

	app := &App{
		config:          cfg,
		server:          server,
		storageProvider: storageProvider,
	}

	if cfg.Janitor.Enabled {
		app.janitor = janitor.New(
			storageProvider.GetGenerationStore(),
			cfg.Janitor.Schedule,
			int64(cfg.Janitor.StaleAfterSeconds),
		)
	}

	return app, nil
}

// newStorageProvider selects the persistence backend
func newStorageProvider(cfg *config.Config) (storage.StorageProvider, error) {
	switch cfg.Storage.Type {
	case "memory":
		log.Println("Using in-memory storage provider")
		return storage.NewMemoryProvider(), nil
	case "postgres", "postgresql":
		log.Printf("Initializing PostgreSQL storage provider with host: %s, port: %d, database: %s",
			cfg.Storage.Postgres.Host, cfg.Storage.Postgres.Port, cfg.Storage.Postgres.Database)
		provider, err := storage.NewPostgreSQLProvider(storage.PostgreSQLProviderConfig{
			Host:     cfg.Storage.Postgres.Host,
			Port:     cfg.Storage.Postgres.Port,
			User:     cfg.Storage.Postgres.User,
			Password: cfg.Storage.Postgres.Password,
			Database: cfg.Storage.Postgres.Database,
			SSLMode:  cfg.Storage.Postgres.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL storage provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// newBlobStore selects the media blob backend
func newBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob.Type {
	case "memory":
		log.Println("Using in-memory blob store")
		return blob.NewMemoryStore(cfg.Blob.PublicBaseURL, cfg.Blob.Bucket), nil
	case "s3":
		log.Printf("Initializing S3 blob store with bucket: %s, region: %s",
			cfg.Blob.Bucket, cfg.Blob.Region)
		store, err := blob.NewS3Store(blob.S3StoreConfig{
			Region:        cfg.Blob.Region,
			Bucket:        cfg.Blob.Bucket,
			AccessKey:     cfg.Blob.AccessKey,
			SecretKey:     cfg.Blob.SecretKey,
			Endpoint:      cfg.Blob.Endpoint,
			PublicBaseURL: cfg.Blob.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 blob store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported blob store type: %s", cfg.Blob.Type)
	}
}

// newModelCache selects the model catalog cache backend
func newModelCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Type {
	case "memory":
		return cache.NewMemoryCache(nil), nil
	case "redis":
		log.Printf("Initializing Redis cache at %s", cfg.Cache.Redis.Addr)
		redisCache, err := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: "loom",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis cache: %w", err)
		}
		return redisCache, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Cache.Type)
	}
}

// Start starts the application
func (a *App) Start() error {
	fmt.Printf("Starting %s version %s\n", AppName, AppVersion)
	if a.janitor != nil {
		if err := a.janitor.Start(); err != nil {
			return err
		}
	}
	return a.server.Start()
}

// Stop stops the application gracefully
func (a *App) Stop(ctx context.Context) error {
	if a.janitor != nil {
		a.janitor.Stop()
	}

	if err := a.server.Stop(ctx); err != nil {
		return err
	}

	if err := a.storageProvider.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}
