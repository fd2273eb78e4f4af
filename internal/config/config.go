// Package config loads service settings from the environment and an optional
// config file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/swmlgen/internal/render"
	"github.com/spf13/viper"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Schema used to validate rendered documents. A missing file disables
	// validation.
	SchemaPath string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Logging
	LogMode  string
	LogLevel string

	// Default output format for rendered documents.
	DefaultFormat render.Format
}

const (
	defaultPort           = "8090"
	defaultSchemaPath     = "schemas/swml-document.schema.json"
	defaultWorkerCount    = 4
	defaultMaxQueueSize   = 100
	defaultMaxUploadBytes = 52428800 // 50MB
	defaultJobTTL         = time.Hour
)

// New returns a viper instance with defaults and environment bindings. If
// file is set it is read as well.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("port", defaultPort)
	v.SetDefault("swmlgen_api_key", "")
	v.SetDefault("schema_path", defaultSchemaPath)
	v.SetDefault("worker_count", defaultWorkerCount)
	v.SetDefault("max_queue_size", defaultMaxQueueSize)
	v.SetDefault("max_upload_bytes", defaultMaxUploadBytes)
	v.SetDefault("job_ttl", defaultJobTTL)
	v.SetDefault("pdf_fallback_pdftotext", true)
	v.SetDefault("log_mode", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("default_format", string(render.JSON))

	// Keys map to upper-case environment variables: port -> PORT.
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", file, err)
			}
		}
	}
	return v, nil
}

// Load reads the environment (and file, if given) into a Config, clamping
// out-of-range values to their defaults.
func Load(file string) (Config, error) {
	v, err := New(file)
	if err != nil {
		return Config{}, err
	}
	return FromViper(v), nil
}

// FromViper builds a Config from an already prepared viper instance.
func FromViper(v *viper.Viper) Config {
	cfg := Config{
		Port:                 v.GetString("port"),
		APIKey:               v.GetString("swmlgen_api_key"),
		SchemaPath:           v.GetString("schema_path"),
		WorkerCount:          v.GetInt("worker_count"),
		MaxQueueSize:         v.GetInt("max_queue_size"),
		MaxUploadBytes:       v.GetInt64("max_upload_bytes"),
		JobTTL:               v.GetDuration("job_ttl"),
		PDFFallbackPdftotext: v.GetBool("pdf_fallback_pdftotext"),
		LogMode:              v.GetString("log_mode"),
		LogLevel:             v.GetString("log_level"),
	}

	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaultWorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = defaultMaxQueueSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = defaultJobTTL
	}
	f, err := render.ParseFormat(v.GetString("default_format"))
	if err != nil {
		f = render.JSON
	}
	cfg.DefaultFormat = f

	return cfg
}

// Validate checks the settings the HTTP server cannot run without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("SWMLGEN_API_KEY is required")
	}
	return nil
}
