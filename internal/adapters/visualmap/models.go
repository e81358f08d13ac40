// internal/adapters/visualmap/models.go
package visualmap

import (
	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/layout"
)

// MapResult carries the visual-mapping service's layout plus the term-to-
// component matches behind it. A failed mapping yields an all-empty-sections
// layout with zero count and Err attached, so the orchestrator can degrade
// to the extractor's own layout instead of aborting the run.
type MapResult struct {
	Layout  *layout.MapperLayout
	Matches []layout.ComponentMatch
	Count   int
	Err     *errors.PipelineError
}

// OK reports whether mapping produced a usable layout.
func (r *MapResult) OK() bool {
	return r.Err == nil
}

type mapRequest struct {
	SessionID  string   `json:"sessionId"`
	Entities   []string `json:"entities"`
	Keyphrases []string `json:"keyphrases,omitempty"`
	Template   string   `json:"template"`
}

type wireMapResult struct {
	Template string                              `json:"template"`
	Sections map[string][]layout.MapperComponent `json:"sections"`
	Matches  []layout.ComponentMatch             `json:"matches,omitempty"`
	Count    int                                 `json:"count"`
}

type wireCatalog struct {
	Components []catalogComponent `json:"components"`
}

type catalogComponent struct {
	Name         string                 `json:"name"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	ExampleProps map[string]interface{} `json:"exampleProps,omitempty"`
}
