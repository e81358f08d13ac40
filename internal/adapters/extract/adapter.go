// internal/adapters/extract/adapter.go
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/common/invoker"
	"pagegen-pipeline/internal/common/logger"
	"pagegen-pipeline/internal/session"

	"github.com/xeipuuv/gojsonschema"
)

const ServiceName = "entity-extraction"

// entitiesSchema guards the upstream response shape before it enters the
// pipeline. A reachable service answering with the wrong shape is a domain
// failure, not a decode crash.
const entitiesSchema = `{
	"type": "object",
	"properties": {
		"entities":   {"type": "array", "items": {"type": "string"}},
		"keyphrases": {"type": "array", "items": {"type": "string"}},
		"chunksProcessed": {"type": "integer", "minimum": 0},
		"layout": {
			"type": "object",
			"properties": {
				"template": {"type": "string"},
				"sections": {"type": "object"}
			}
		}
	},
	"required": ["entities"]
}`

// Adapter is the typed wrapper over the resilient invoker for the
// entity-extraction service.
type Adapter struct {
	config  *Config
	invoker *invoker.Invoker
	logger  logger.Logger
	schema  *gojsonschema.Schema
}

func NewAdapter(cfg *Config, inv *invoker.Invoker, log logger.Logger) *Adapter {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(entitiesSchema))
	if err != nil {
		// The schema is a compile-time constant; failing to parse it is a
		// programming error.
		panic(fmt.Sprintf("extract: invalid entities schema: %v", err))
	}
	return &Adapter{
		config:  cfg,
		invoker: inv,
		logger: log.With(map[string]interface{}{
			"adapter": ServiceName,
		}),
		schema: schema,
	}
}

// Ingest submits canonicalized text for extraction. It is a write-type call:
// the idempotency key derives from the session, the stage, and the text
// content, so an automatic retry after a timeout reuses the same key.
func (a *Adapter) Ingest(ctx context.Context, sessionID, text string) *errors.PipelineError {
	normalized := NormalizeText(text)
	if normalized == "" {
		return errors.NewValidationError("text is empty after normalization")
	}

	body, _ := json.Marshal(ingestRequest{SessionID: sessionID, Text: normalized})

	_, pErr := a.invoker.Invoke(ctx, invoker.Request{
		Target:         ServiceName,
		Method:         http.MethodPost,
		URL:            a.config.BaseURL + "/api/ingest",
		Headers:        map[string]string{"Content-Type": "application/json"},
		Body:           body,
		SessionID:      sessionID,
		IdempotencyKey: session.IdempotencyKey(sessionID, "extract-entities", []byte(normalized)),
		Timeout:        a.config.Timeout,
		MaxRetries:     a.config.MaxRetries,
	})
	if pErr != nil {
		return pErr.WithStage("extract-entities")
	}

	a.logger.Info("text ingested", map[string]interface{}{
		"sessionId":  sessionID,
		"textLength": len(normalized),
	})
	return nil
}

// FetchEntities retrieves the extraction result for a session. Any failure
// yields an empty entity set with the error attached: empty entities are a
// legitimate fallback trigger, not a pipeline-ending condition.
func (a *Adapter) FetchEntities(ctx context.Context, sessionID string) *Result {
	resp, pErr := a.invoker.Invoke(ctx, invoker.Request{
		Target:     ServiceName,
		Method:     http.MethodGet,
		URL:        a.config.BaseURL + "/api/entities?sessionId=" + url.QueryEscape(sessionID),
		SessionID:  sessionID,
		Timeout:    a.config.Timeout,
		MaxRetries: a.config.MaxRetries,
	})
	if pErr != nil {
		return emptyResult(pErr.WithStage("extract-entities"))
	}

	if pErr := a.validateShape(resp.Body); pErr != nil {
		return emptyResult(pErr)
	}

	var wire wireEntities
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return emptyResult(errors.NewServiceLogicError(ServiceName, "undecodable response: "+err.Error()))
	}

	a.logger.Info("entities fetched", map[string]interface{}{
		"sessionId":       sessionID,
		"entityCount":     len(wire.Entities),
		"keyphraseCount":  len(wire.Keyphrases),
		"chunksProcessed": wire.ChunksProcessed,
	})

	return &Result{
		EntitySet: EntitySet{
			Entities:        wire.Entities,
			Keyphrases:      wire.Keyphrases,
			ChunksProcessed: wire.ChunksProcessed,
		},
		Layout: wire.Layout,
	}
}

// HealthCheck is a best-effort liveness probe; failures report false.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return a.invoker.CheckHealth(ctx, ServiceName, a.config.BaseURL+a.config.HealthPath, a.config.HealthTimeout)
}

func (a *Adapter) validateShape(body []byte) *errors.PipelineError {
	result, err := a.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.NewServiceLogicError(ServiceName, "unvalidatable response: "+err.Error())
	}
	if !result.Valid() {
		details := ""
		for _, desc := range result.Errors() {
			if details != "" {
				details += "; "
			}
			details += desc.String()
		}
		return errors.NewServiceLogicError(ServiceName, "response shape mismatch: "+details)
	}
	return nil
}

func emptyResult(pErr *errors.PipelineError) *Result {
	return &Result{
		EntitySet: EntitySet{
			Entities:   []string{},
			Keyphrases: []string{},
		},
		Err: pErr,
	}
}
