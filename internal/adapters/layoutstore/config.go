// internal/adapters/layoutstore/config.go
package layoutstore

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
}

func ConfigFrom(svc config.ServiceConfig) *Config {
	return &Config{
		BaseURL:       svc.BaseURL,
		Timeout:       config.GetDuration(svc.Timeout),
		MaxRetries:    svc.MaxRetries,
		HealthTimeout: config.GetDuration(svc.HealthTimeout),
		HealthPath:    svc.HealthPath,
	}
}
