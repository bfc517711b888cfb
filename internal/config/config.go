// Package config provides configuration loading for the invoice extractor.
// Supports YAML files, .env files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel           = "gemini-1.5-flash"
	DefaultFallbackBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// Config holds all configuration for the invoice extractor.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Render        RenderConfig        `yaml:"render"`
	Download      DownloadConfig      `yaml:"download"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// ExtractionConfig holds settings for the vision model.
type ExtractionConfig struct {
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	FallbackBaseURL string `yaml:"fallback_base_url"`
}

// Available reports whether the extraction capability is configured.
func (c ExtractionConfig) Available() bool {
	return c.APIKey != ""
}

// RenderConfig holds rasterization and image normalization settings.
type RenderConfig struct {
	DPI         int     `yaml:"dpi"`
	JPEGQuality int     `yaml:"jpeg_quality"`
	Sharpness   float64 `yaml:"sharpness"`
	Contrast    float64 `yaml:"contrast"`
}

// DownloadConfig holds remote document fetch settings.
type DownloadConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int64         `yaml:"max_bytes"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file, a .env file if present, and
// applies environment overrides. An empty path skips the YAML step.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	_ = godotenv.Load() // Ignore error if .env doesn't exist

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     5 * time.Minute,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   50 << 20,
		},
		Extraction: ExtractionConfig{
			Model:           DefaultModel,
			FallbackBaseURL: DefaultFallbackBaseURL,
		},
		Render: RenderConfig{
			DPI:         150,
			JPEGQuality: 85,
			Sharpness:   1.05,
			Contrast:    1.03,
		},
		Download: DownloadConfig{
			Timeout:  30 * time.Second,
			MaxBytes: 50 << 20,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "invoice-extractor",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Render.DPI < 36 || c.Render.DPI > 600 {
		return fmt.Errorf("render dpi must be between 36 and 600, got %d", c.Render.DPI)
	}

	if c.Render.JPEGQuality < 1 || c.Render.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100, got %d", c.Render.JPEGQuality)
	}

	if c.Download.Timeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}

	if c.Extraction.Model == "" {
		return fmt.Errorf("extraction model must not be empty")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Extraction.APIKey = v
	}

	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Extraction.Model = v
	}

	if v := os.Getenv("GEMINI_OPENAI_BASE_URL"); v != "" {
		cfg.Extraction.FallbackBaseURL = v
	}

	if v := os.Getenv("PDF_RENDER_DPI"); v != "" {
		dpi, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PDF_RENDER_DPI %q: %w", v, err)
		}
		cfg.Render.DPI = dpi
	}

	if v := os.Getenv("DOWNLOAD_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DOWNLOAD_TIMEOUT %q: %w", v, err)
		}
		cfg.Download.Timeout = d
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}
