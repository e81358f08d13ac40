// internal/adapters/transcribe/config.go
package transcribe

import (
	"time"

	"pagegen-pipeline/internal/common/config"
)

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	HealthTimeout time.Duration
	HealthPath    string
	MinAudioBytes int
}

func ConfigFrom(svc config.ServiceConfig, pipeline config.PipelineConfig) *Config {
	return &Config{
		BaseURL:       svc.BaseURL,
		Timeout:       config.GetDuration(svc.Timeout),
		MaxRetries:    svc.MaxRetries,
		HealthTimeout: config.GetDuration(svc.HealthTimeout),
		HealthPath:    svc.HealthPath,
		MinAudioBytes: pipeline.MinAudioBytes,
	}
}
