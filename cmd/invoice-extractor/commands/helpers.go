package commands

import (
	"os"

	"github.com/spherical/invoice-extractor/internal/config"
	"github.com/spherical/invoice-extractor/internal/observability"
)

// loadConfig reads --config, falling back to CONFIG_PATH.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, format string) *observability.Logger {
	if format == "" {
		format = cfg.Observability.LogFormat
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      format,
		Output:      os.Stderr,
		ServiceName: cfg.Observability.ServiceName,
	})
}
