// internal/adapters/layoutstore/adapter.go
package layoutstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/common/invoker"
	"pagegen-pipeline/internal/common/logger"
	"pagegen-pipeline/internal/layout"
	"pagegen-pipeline/internal/session"
)

const ServiceName = "layout-store"

// Adapter is the typed wrapper over the resilient invoker for the
// layout-persistence collaborator. Persistence failures are recoverable:
// the orchestrator completes the run with the layout unpersisted and says
// so in the result.
type Adapter struct {
	config  *Config
	invoker *invoker.Invoker
	logger  logger.Logger
}

func NewAdapter(cfg *Config, inv *invoker.Invoker, log logger.Logger) *Adapter {
	return &Adapter{
		config:  cfg,
		invoker: inv,
		logger: log.With(map[string]interface{}{
			"adapter": ServiceName,
		}),
	}
}

// Save persists a canonical layout under its session. The idempotency key
// derives from the session and the serialized layout, so a retried save of
// the same layout is a no-op on the store side while a changed layout gets
// a fresh key.
func (a *Adapter) Save(ctx context.Context, sessionID string, l *layout.CanonicalLayout) *errors.PipelineError {
	if l == nil {
		return errors.NewValidationError("layout must not be nil")
	}

	body, err := json.Marshal(saveRequest{SessionID: sessionID, Layout: l})
	if err != nil {
		return errors.NewValidationError("unserializable layout: " + err.Error())
	}

	_, pErr := a.invoker.Invoke(ctx, invoker.Request{
		Target:         ServiceName,
		Method:         http.MethodPost,
		URL:            a.config.BaseURL + "/api/layouts",
		Headers:        map[string]string{"Content-Type": "application/json"},
		Body:           body,
		SessionID:      sessionID,
		IdempotencyKey: session.IdempotencyKey(sessionID, "persist", body),
		Timeout:        a.config.Timeout,
		MaxRetries:     a.config.MaxRetries,
	})
	if pErr != nil {
		return pErr.WithStage("persist")
	}

	a.logger.Info("layout persisted", map[string]interface{}{
		"sessionId":      sessionID,
		"componentCount": l.ComponentCount(),
	})
	return nil
}

// Load fetches the persisted layout for a session. A missing layout comes
// back as an HTTP 404 error; use IsNotFound to tell it from a store outage.
func (a *Adapter) Load(ctx context.Context, sessionID string) (*layout.CanonicalLayout, *errors.PipelineError) {
	resp, pErr := a.invoker.Invoke(ctx, invoker.Request{
		Target:     ServiceName,
		Method:     http.MethodGet,
		URL:        a.config.BaseURL + "/api/layouts/" + url.PathEscape(sessionID),
		SessionID:  sessionID,
		Timeout:    a.config.Timeout,
		MaxRetries: a.config.MaxRetries,
	})
	if pErr != nil {
		return nil, pErr.WithStage("persist")
	}

	var l layout.CanonicalLayout
	if err := json.Unmarshal(resp.Body, &l); err != nil {
		return nil, errors.NewServiceLogicError(ServiceName, "undecodable layout: "+err.Error())
	}
	return &l, nil
}

// HealthCheck is a best-effort liveness probe; failures report false.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return a.invoker.CheckHealth(ctx, ServiceName, a.config.BaseURL+a.config.HealthPath, a.config.HealthTimeout)
}

// IsNotFound reports whether the error is the store saying the session has
// no persisted layout.
func IsNotFound(pErr *errors.PipelineError) bool {
	return pErr != nil && pErr.Status == http.StatusNotFound
}

type saveRequest struct {
	SessionID string                  `json:"sessionId"`
	Layout    *layout.CanonicalLayout `json:"layout"`
}
