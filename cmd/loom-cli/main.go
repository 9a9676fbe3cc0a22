// Package main provides a CLI for interacting with the loom server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL  string
	username   string
	password   string
	token      string
	configPath string
)

// Config represents the CLI configuration
type Config struct {
	ServerURL string `json:"server_url"`
	Username  string `json:"username"`
	Token     string `json:"token"`
	JWTToken  string `json:"jwt_token"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "loom-cli",
		Short: "Loom CLI",
		Long:  "Command-line interface for interacting with the loom server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load config if not explicitly provided
			if serverURL == "" || (username == "" && token == "") {
				loadConfig()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Password")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "API token")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	rootCmd.AddCommand(loginCmd)

	// Account commands
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account management",
	}
	accountCmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create a new account",
			Run:   createAccount,
		},
		&cobra.Command{
			Use:   "info",
			Short: "Get account information",
			Run:   getAccountInfo,
		},
	)

	// Canvas commands
	canvasCmd := &cobra.Command{
		Use:   "canvas",
		Short: "Canvas management",
	}
	canvasCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List canvases",
			Run:   listJSON("/api/v1/canvases"),
		},
		&cobra.Command{
			Use:   "get [id]",
			Short: "Get a canvas",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				getJSON("/api/v1/canvases/" + args[0])
			},
		},
		&cobra.Command{
			Use:   "delete [id]",
			Short: "Delete a canvas",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				deleteResource("/api/v1/canvases/" + args[0])
			},
		},
	)

	// Asset commands
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Asset library management",
	}
	assetCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List assets",
			Run:   listJSON("/api/v1/assets"),
		},
		&cobra.Command{
			Use:   "delete [id]",
			Short: "Delete an asset",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				deleteResource("/api/v1/assets/" + args[0])
			},
		},
	)

	// Generation commands
	generationCmd := &cobra.Command{
		Use:   "generation",
		Short: "Generation history",
	}
	generationCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List generations",
			Run:   listJSON("/api/v1/generations"),
		},
	)

	// Model commands
	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "Model catalog",
	}
	modelCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available models",
			Run:   listJSON("/api/v1/models"),
		},
	)

	rootCmd.AddCommand(accountCmd, canvasCmd, assetCmd, generationCmd, modelCmd)
	attachSeed(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig loads the CLI configuration
func loadConfig() {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".loom", "cli-config.json")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		fmt.Printf("Warning: Failed to read config file: %v\n", err)
		return
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		fmt.Printf("Warning: Failed to parse config file: %v\n", err)
		return
	}

	if serverURL == "" {
		serverURL = config.ServerURL
	}
	if username == "" && token == "" {
		username = config.Username
		token = config.Token

		// Prefer JWT token if available
		if config.JWTToken != "" {
			token = config.JWTToken
		}
	}
}

// saveConfig saves the CLI configuration
func saveConfig(config Config) error {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir := filepath.Join(home, ".loom")
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "cli-config.json")
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// createAccount creates a new account
func createAccount(cmd *cobra.Command, args []string) {
	if serverURL == "" {
		fmt.Println("Error: Server URL is required")
		os.Exit(1)
	}

	if username == "" {
		fmt.Print("Username: ")
		fmt.Scanln(&username)
	}
	if password == "" {
		fmt.Print("Password: ")
		fmt.Scanln(&password)
	}

	reqBody, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/accounts", serverURL),
		"application/json",
		bytes.NewBuffer(reqBody),
	)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode != http.StatusCreated {
		fmt.Printf("Error: %s\n", body)
		os.Exit(1)
	}

	fmt.Println(string(body))
}

// getAccountInfo prints the authenticated account
func getAccountInfo(cmd *cobra.Command, args []string) {
	getJSON("/api/v1/accounts/me")
}

// listJSON builds a command handler that GETs and prints a collection
func listJSON(path string) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		getJSON(path)
	}
}

// getJSON performs an authenticated GET and prints the response body
func getJSON(path string) {
	body := doRequest(http.MethodGet, path, nil, http.StatusOK)
	fmt.Println(string(body))
}

// deleteResource performs an authenticated DELETE
func deleteResource(path string) {
	doRequest(http.MethodDelete, path, nil, http.StatusOK)
	fmt.Println("Deleted")
}

// doRequest sends an authenticated request and exits on failure
func doRequest(method, path string, reqBody []byte, wantStatus int) []byte {
	if serverURL == "" {
		fmt.Println("Error: Server URL is required")
		os.Exit(1)
	}
	if token == "" {
		fmt.Println("Error: Not logged in (run 'loom-cli login' first)")
		os.Exit(1)
	}

	req, err := http.NewRequest(method, serverURL+path, bytes.NewReader(reqBody))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != wantStatus {
		fmt.Printf("Error: %s\n", body)
		os.Exit(1)
	}
	return body
}
