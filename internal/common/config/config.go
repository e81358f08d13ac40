// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Services ServicesConfig `mapstructure:"services"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	ClientID    string `mapstructure:"client_id"` // sent as X-Client-Id on outbound calls
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// ServicesConfig holds the four external HTTP collaborators.
type ServicesConfig struct {
	Transcription    ServiceConfig `mapstructure:"transcription"`
	EntityExtraction ServiceConfig `mapstructure:"entity_extraction"`
	VisualMapping    ServiceConfig `mapstructure:"visual_mapping"`
	LayoutStore      ServiceConfig `mapstructure:"layout_store"`
}

// ServiceConfig holds the per-collaborator invocation policy.
type ServiceConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Timeout       int    `mapstructure:"timeout"`        // milliseconds, whole invocation
	MaxRetries    int    `mapstructure:"max_retries"`    // retries after the first attempt
	HealthTimeout int    `mapstructure:"health_timeout"` // milliseconds
	HealthPath    string `mapstructure:"health_path"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	DefaultTemplate string `mapstructure:"default_template"`
	MinAudioBytes   int    `mapstructure:"min_audio_bytes"`
	DefaultLanguage string `mapstructure:"default_language"`
}

// CatalogConfig holds the component catalog cache settings.
type CatalogConfig struct {
	TTL             int `mapstructure:"ttl"`              // seconds
	CleanupInterval int `mapstructure:"cleanup_interval"` // seconds
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Validate checks a single service entry.
func (s ServiceConfig) Validate(name string) error {
	if s.BaseURL == "" {
		return fmt.Errorf("services.%s.base_url is required", name)
	}
	return nil
}
