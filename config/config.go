// Package config resolves runtime configuration with the precedence
// flag > environment > default, loading a .env file when present.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultServerURL      = "http://localhost:6000"
	DefaultCredentialFile = ".skyops-credentials.json"
	DefaultTimeout        = 10 * time.Second
)

// Config is the resolved runtime configuration.
type Config struct {
	// ServerURL is the API base URL.
	ServerURL string
	// CredentialFile is the path of the persisted credential document.
	CredentialFile string
	// Timeout bounds each API request.
	Timeout time.Duration
	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string
	// Email and Password are optional login credentials for the demo CLI.
	Email    string
	Password string
}

// Flags carries values parsed from the command line; empty values fall
// through to the environment and then to defaults.
type Flags struct {
	ServerURL      string
	CredentialFile string
}

// Load resolves the configuration. A .env file in the working directory is
// loaded first (and ignored when absent).
func Load(flags Flags) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ServerURL:      resolve(flags.ServerURL, "SERVER_URL", DefaultServerURL),
		CredentialFile: resolve(flags.CredentialFile, "CREDENTIAL_FILE", DefaultCredentialFile),
		Timeout:        DefaultTimeout,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Email:          os.Getenv("OPS_EMAIL"),
		Password:       os.Getenv("OPS_PASSWORD"),
	}

	if raw := os.Getenv("API_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return Config{}, fmt.Errorf("invalid API_TIMEOUT %q", raw)
		}
		cfg.Timeout = timeout
	}

	if err := ValidateServerURL(cfg.ServerURL); err != nil {
		return Config{}, fmt.Errorf("invalid SERVER_URL: %w", err)
	}

	return cfg, nil
}

// Insecure reports whether the server URL uses plain HTTP, which transmits
// tokens in cleartext.
func (c Config) Insecure() bool {
	return strings.HasPrefix(strings.ToLower(c.ServerURL), "http://")
}

// resolve returns value with priority: flag > env > default.
func resolve(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ValidateServerURL validates that the server URL is properly formatted.
func ValidateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}
