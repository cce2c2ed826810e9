// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	ClassplusToken       string        `env:"CLASSPLUS_ACCESS_TOKEN,required"`
	AdminUserID          int64         `env:"ADMIN_USER_ID" envDefault:"0"`
	AdminToken           string        `env:"ADMIN_TOKEN"`
	ServerPort           string        `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	BaseDownloadsPath    string        `env:"BASE_DOWNLOADS_PATH" envDefault:"/downloads"`
	DeliveryPath         string        `env:"DELIVERY_PATH" envDefault:"/delivered"`
	NotifyWebhookURL     string        `env:"NOTIFY_WEBHOOK_URL"`
	MaxConcurrentBatches int           `env:"MAX_CONCURRENT_BATCHES" envDefault:"3"`
	PromptTimeout        time.Duration `env:"PROMPT_TIMEOUT" envDefault:"60s"`
	FileWaitTimeout      time.Duration `env:"FILE_WAIT_TIMEOUT" envDefault:"300s"`
	DownloadTimeout      time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"1h"`
	YtdlpPath            string        `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	UtkarshAPIURL        string        `env:"UTKARSH_API_URL" envDefault:"https://api.utkarshclasses.com"`
	ClassplusAPIURL      string        `env:"CLASSPLUS_API_URL" envDefault:"https://api.classplusapp.com"`
	MPDCDNHost           string        `env:"MPD_CDN_HOST" envDefault:"d26g5bnklkwsh4.cloudfront.net"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ClassplusToken == "" {
		return fmt.Errorf("CLASSPLUS_ACCESS_TOKEN is required")
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	logLevel := strings.ToLower(c.LogLevel)
	isValidLevel := false
	for _, level := range validLogLevels {
		if logLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("invalid log level %q, must be one of: %v", c.LogLevel, validLogLevels)
	}

	if c.MaxConcurrentBatches < 1 {
		return fmt.Errorf("MAX_CONCURRENT_BATCHES must be at least 1, got: %d", c.MaxConcurrentBatches)
	}

	// Validate base downloads path
	if c.BaseDownloadsPath == "" {
		return fmt.Errorf("BASE_DOWNLOADS_PATH cannot be empty")
	}

	// Clean and validate the path
	cleanPath := filepath.Clean(c.BaseDownloadsPath)
	if !filepath.IsAbs(cleanPath) {
		return fmt.Errorf("BASE_DOWNLOADS_PATH must be an absolute path, got: %s", c.BaseDownloadsPath)
	}

	// Check if path exists and is a directory (only if it exists)
	if info, err := os.Stat(cleanPath); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("BASE_DOWNLOADS_PATH must be a directory, got file: %s", cleanPath)
		}
	}

	// Update the config with cleaned path
	c.BaseDownloadsPath = cleanPath

	if c.DeliveryPath == "" {
		return fmt.Errorf("DELIVERY_PATH cannot be empty")
	}
	cleanDelivery := filepath.Clean(c.DeliveryPath)
	if !filepath.IsAbs(cleanDelivery) {
		return fmt.Errorf("DELIVERY_PATH must be an absolute path, got: %s", c.DeliveryPath)
	}
	c.DeliveryPath = cleanDelivery

	return nil
}
