package config

import (
	"fmt"
	"os"

	"go-media-download/internal/models"
	"go-media-download/internal/queue"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// LoadConfig reads the configuration from the specified path (defaulting to
// "config.toml") and populates the models.Config struct. A missing file is
// not an error: defaults apply and flags can fill the rest.
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = "config.toml"
	}

	var cfg models.Config
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		log.Debugf("No config file at %s, using defaults", configFilePath)
		applyDefaults(&cfg)
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configFilePath, &cfg); err != nil {
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}
	applyDefaults(&cfg)

	if cfg.SavePath == "" {
		log.Warn("Warning: SavePath is not set; downloads land in the current directory")
	}

	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// applyDefaults fills unset fields. Concurrency defaults to the scheduler's
// standard limit; a value explicitly set to zero or below is left as-is so
// the scheduler can reject it.
func applyDefaults(cfg *models.Config) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = queue.DefaultConcurrency
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "history.db"
	}
	if cfg.BleveIndexPath == "" {
		cfg.BleveIndexPath = "media-downloader.bleve"
	}
	if cfg.YtdlpPath == "" {
		cfg.YtdlpPath = "yt-dlp"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}
