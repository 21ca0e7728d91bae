package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "ANNOTATOR_"

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Storage struct {
		TempDir   string `yaml:"temp_dir"`
		MediaDir  string `yaml:"media_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Session struct {
		AutosaveSeconds    int `yaml:"autosave_seconds"`
		HistoryLimit       int `yaml:"history_limit"`
		IdleTimeoutMinutes int `yaml:"idle_timeout_minutes"`
	} `yaml:"session"`

	Cleanup struct {
		IntervalMinutes   int `yaml:"interval_minutes"`
		ExportMaxAgeHours int `yaml:"export_max_age_hours"`
		TempMaxAgeHours   int `yaml:"temp_max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used for anything a file leaves out
func Default() *Config {
	var c Config
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Workers.Count = 2
	c.Storage.TempDir = "temp"
	c.Storage.MediaDir = "media"
	c.Storage.OutputDir = "exports"
	c.Storage.Database = "annotator.db"
	c.Session.AutosaveSeconds = 120
	c.Session.HistoryLimit = 50
	c.Session.IdleTimeoutMinutes = 60
	c.Cleanup.IntervalMinutes = 30
	c.Cleanup.ExportMaxAgeHours = 24 * 30
	c.Cleanup.TempMaxAgeHours = 24
	c.GoogleDrive.CredentialsFile = "credentials.json"
	c.GoogleDrive.TokenFile = "token.json"
	c.GoogleDrive.FolderName = "Annotations"
	c.Limits.MaxFileSizeMB = 50
	c.Log.Level = "info"
	c.Log.Format = "console"
	return &c
}

// Load reads the YAML file at path over the defaults, then applies .env
// files and ANNOTATOR_* environment overrides. A missing file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	// godotenv never overrides variables already set in the environment
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"HOST":               &c.Server.Host,
		"TEMP_DIR":           &c.Storage.TempDir,
		"MEDIA_DIR":          &c.Storage.MediaDir,
		"OUTPUT_DIR":         &c.Storage.OutputDir,
		"DATABASE":           &c.Storage.Database,
		"GDRIVE_CREDENTIALS": &c.GoogleDrive.CredentialsFile,
		"GDRIVE_TOKEN":       &c.GoogleDrive.TokenFile,
		"GDRIVE_FOLDER":      &c.GoogleDrive.FolderName,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":             &c.Server.Port,
		"WORKERS":          &c.Workers.Count,
		"AUTOSAVE_SECONDS": &c.Session.AutosaveSeconds,
		"HISTORY_LIMIT":    &c.Session.HistoryLimit,
		"IDLE_MINUTES":     &c.Session.IdleTimeoutMinutes,
		"MAX_FILE_SIZE_MB": &c.Limits.MaxFileSizeMB,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}
	return nil
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	case c.Workers.Count <= 0:
		return fmt.Errorf("worker count must be positive, got %d", c.Workers.Count)
	case c.Session.AutosaveSeconds <= 0:
		return fmt.Errorf("autosave interval must be positive, got %d", c.Session.AutosaveSeconds)
	case c.Session.HistoryLimit <= 0:
		return fmt.Errorf("history limit must be positive, got %d", c.Session.HistoryLimit)
	case c.Storage.Database == "":
		return errors.New("storage database path is empty")
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AutosaveInterval is the session autosave period
func (c *Config) AutosaveInterval() time.Duration {
	return time.Duration(c.Session.AutosaveSeconds) * time.Second
}

// IdleTimeout is how long an untouched session stays open
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutMinutes) * time.Minute
}
