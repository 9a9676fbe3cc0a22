package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Check default values
	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected default host to be 'localhost', got '%s'", cfg.Server.Host)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Server.Port)
	}

	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected default storage type to be 'memory', got '%s'", cfg.Storage.Type)
	}

	if cfg.Gateway.PollIntervalMs != 2500 {
		t.Errorf("Expected default poll interval to be 2500ms, got %d", cfg.Gateway.PollIntervalMs)
	}

	if cfg.Gateway.MaxPollAttempts != 240 {
		t.Errorf("Expected default max poll attempts to be 240, got %d", cfg.Gateway.MaxPollAttempts)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	// Create a temporary directory for the test
	tempDir, err := os.MkdirTemp("", "loom-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configPath := filepath.Join(tempDir, "config.json")

	originalCfg := DefaultConfig()
	originalCfg.Server.Host = "testhost"
	originalCfg.Server.Port = 9090
	originalCfg.Storage.Type = "postgres"
	originalCfg.Blob.Bucket = "test-bucket"

	if err := SaveConfig(originalCfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loadedCfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedCfg.Server.Host != originalCfg.Server.Host {
		t.Errorf("Expected host to be '%s', got '%s'", originalCfg.Server.Host, loadedCfg.Server.Host)
	}

	if loadedCfg.Server.Port != originalCfg.Server.Port {
		t.Errorf("Expected port to be %d, got %d", originalCfg.Server.Port, loadedCfg.Server.Port)
	}

	if loadedCfg.Storage.Type != originalCfg.Storage.Type {
		t.Errorf("Expected storage type to be '%s', got '%s'", originalCfg.Storage.Type, loadedCfg.Storage.Type)
	}

	if loadedCfg.Blob.Bucket != "test-bucket" {
		t.Errorf("Expected bucket to be 'test-bucket', got '%s'", loadedCfg.Blob.Bucket)
	}
}

func TestEnvOverrides(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "loom-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configPath := filepath.Join(tempDir, "config.json")
	if err := SaveConfig(DefaultConfig(), configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	t.Setenv("LOOM_SERVER_PORT", "9999")
	t.Setenv("LOOM_JWT_SECRET", "env-secret")
	t.Setenv("LOOM_STORAGE_TYPE", "postgres")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Expected env override port 9999, got %d", cfg.Server.Port)
	}

	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("Expected env override jwt secret, got '%s'", cfg.Auth.JWTSecret)
	}

	if cfg.Storage.Type != "postgres" {
		t.Errorf("Expected env override storage type 'postgres', got '%s'", cfg.Storage.Type)
	}
}

func TestLoadConfigError(t *testing.T) {
	// Try to load a non-existent config file
	_, err := LoadConfig("non-existent-file.json")
	if err == nil {
		t.Error("Expected error when loading non-existent config file, got nil")
	}
}
