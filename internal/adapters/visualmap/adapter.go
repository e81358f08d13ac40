// internal/adapters/visualmap/adapter.go
package visualmap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"pagegen-pipeline/internal/catalog"
	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/common/invoker"
	"pagegen-pipeline/internal/common/logger"
	"pagegen-pipeline/internal/layout"
	"pagegen-pipeline/internal/session"

	"github.com/xeipuuv/gojsonschema"
)

const ServiceName = "visual-mapping"

const mapSchema = `{
	"type": "object",
	"properties": {
		"template": {"type": "string"},
		"sections": {"type": "object"},
		"matches": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"term":      {"type": "string"},
					"component": {"type": "string"}
				},
				"required": ["term", "component"]
			}
		},
		"count": {"type": "integer", "minimum": 0}
	},
	"required": ["sections"]
}`

// Adapter is the typed wrapper over the resilient invoker for the
// visual-mapping service. It owns the component-catalog cache: catalog
// lookups hit the cache first and refresh it on miss.
type Adapter struct {
	config  *Config
	invoker *invoker.Invoker
	cache   *catalog.Cache
	logger  logger.Logger
	schema  *gojsonschema.Schema
}

func NewAdapter(cfg *Config, inv *invoker.Invoker, cache *catalog.Cache, log logger.Logger) *Adapter {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(mapSchema))
	if err != nil {
		panic(fmt.Sprintf("visualmap: invalid map schema: %v", err))
	}
	return &Adapter{
		config:  cfg,
		invoker: inv,
		cache:   cache,
		logger: log.With(map[string]interface{}{
			"adapter": ServiceName,
		}),
		schema: schema,
	}
}

// MapEntities asks the service to place components for the extracted terms.
// An empty entity list is a caller error and fails synchronously; the
// orchestrator is expected to take the fallback path instead of calling
// here. Service failures come back inside the result, never as a bare error:
// the layout is all-empty-sections and Err carries the cause.
func (a *Adapter) MapEntities(ctx context.Context, sessionID string, entities, keyphrases []string, template string) *MapResult {
	if len(entities) == 0 {
		return failedResult(template, errors.NewValidationError("entities must be non-empty"))
	}

	body, _ := json.Marshal(mapRequest{
		SessionID:  sessionID,
		Entities:   entities,
		Keyphrases: keyphrases,
		Template:   template,
	})

	resp, pErr := a.invoker.Invoke(ctx, invoker.Request{
		Target:         ServiceName,
		Method:         http.MethodPost,
		URL:            a.config.BaseURL + "/api/map",
		Headers:        map[string]string{"Content-Type": "application/json"},
		Body:           body,
		SessionID:      sessionID,
		IdempotencyKey: session.IdempotencyKey(sessionID, "map-visual", body),
		Timeout:        a.config.Timeout,
		MaxRetries:     a.config.MaxRetries,
	})
	if pErr != nil {
		return failedResult(template, pErr.WithStage("map-visual"))
	}

	if pErr := a.validateShape(resp.Body); pErr != nil {
		return failedResult(template, pErr)
	}

	var wire wireMapResult
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return failedResult(template, errors.NewServiceLogicError(ServiceName, "undecodable response: "+err.Error()))
	}

	a.logger.Info("entities mapped", map[string]interface{}{
		"sessionId":      sessionID,
		"componentCount": wire.Count,
		"matchCount":     len(wire.Matches),
	})

	return &MapResult{
		Layout: &layout.MapperLayout{
			Template: wire.Template,
			Sections: wire.Sections,
			Count:    wire.Count,
		},
		Matches: wire.Matches,
		Count:   wire.Count,
	}
}

// Catalog returns the component catalog, serving from cache within the TTL
// and refreshing from the service on miss. A fetch failure with a cold cache
// returns the error; the catalog is advisory, so callers may proceed without
// it.
func (a *Adapter) Catalog(ctx context.Context) ([]catalog.Entry, *errors.PipelineError) {
	if cached := a.cache.Get(); cached != nil {
		return cached, nil
	}

	resp, pErr := a.invoker.Invoke(ctx, invoker.Request{
		Target:     ServiceName,
		Method:     http.MethodGet,
		URL:        a.config.BaseURL + "/api/components",
		Timeout:    a.config.Timeout,
		MaxRetries: a.config.MaxRetries,
	})
	if pErr != nil {
		return nil, pErr.WithStage("map-visual")
	}

	var wire wireCatalog
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return nil, errors.NewServiceLogicError(ServiceName, "undecodable catalog: "+err.Error())
	}

	entries := make([]catalog.Entry, 0, len(wire.Components))
	for _, c := range wire.Components {
		entries = append(entries, catalog.Entry{
			Name:         c.Name,
			DisplayName:  c.DisplayName,
			Description:  c.Description,
			ExampleProps: c.ExampleProps,
		})
	}
	a.cache.Set(entries)

	a.logger.Info("catalog refreshed", map[string]interface{}{
		"componentCount": len(entries),
	})
	return entries, nil
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

func failedResult(template string, pErr *errors.PipelineError) *MapResult {
	sections := make(map[string][]layout.MapperComponent, len(layout.SectionNames))
	for _, name := range layout.SectionNames {
		sections[name] = []layout.MapperComponent{}
	}
	return &MapResult{
		Layout: &layout.MapperLayout{
			Template: template,
			Sections: sections,
		},
		Matches: []layout.ComponentMatch{},
		Err:     pErr,
	}
}
