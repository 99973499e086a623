package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Converters ConvertersConfig `yaml:"converters"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig holds the staging directories and upload limits
type StorageConfig struct {
	UploadDir    string `yaml:"upload_dir"`
	ConvertedDir string `yaml:"converted_dir"`
	MaxFileSize  int64  `yaml:"max_file_size"`
}

// JobsConfig holds job execution and retention configuration
type JobsConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	QueueSize       int           `yaml:"queue_size"`
	Retention       time.Duration `yaml:"retention"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

// ConvertersConfig holds external tool paths for converter families.
// An empty path disables the conversions that depend on that tool.
type ConvertersConfig struct {
	FFmpegPath    string `yaml:"ffmpeg_path"`
	PdfToTextPath string `yaml:"pdftotext_path"`
	PdfToPpmPath  string `yaml:"pdftoppm_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// DefaultMaxFileSize caps uploads at 100MB unless configured otherwise
const DefaultMaxFileSize = 100 * 1024 * 1024

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.MaxFileSize <= 0 {
		c.Storage.MaxFileSize = DefaultMaxFileSize
	}
	if c.Jobs.Concurrency <= 0 {
		c.Jobs.Concurrency = 4
	}
	if c.Jobs.QueueSize <= 0 {
		c.Jobs.QueueSize = 128
	}
	if c.Jobs.Retention <= 0 {
		c.Jobs.Retention = time.Hour
	}
	if c.Jobs.JanitorInterval <= 0 {
		c.Jobs.JanitorInterval = 5 * time.Minute
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage upload_dir is required")
	}

	if c.Storage.ConvertedDir == "" {
		return fmt.Errorf("storage converted_dir is required")
	}

	if c.Storage.UploadDir == c.Storage.ConvertedDir {
		return fmt.Errorf("storage upload_dir and converted_dir must be different directories")
	}

	if c.Jobs.Concurrency <= 0 {
		return fmt.Errorf("jobs concurrency must be greater than 0")
	}

	if c.Jobs.Retention <= 0 {
		return fmt.Errorf("jobs retention must be greater than 0")
	}

	if c.Jobs.JanitorInterval <= 0 {
		return fmt.Errorf("jobs janitor_interval must be greater than 0")
	}

	return nil
}
