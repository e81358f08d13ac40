// internal/adapters/extract/models.go
package extract

import (
	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/layout"
)

// EntitySet is the ordered output of the entity-extraction stage. An empty
// set is legitimate output, not a failure; it triggers the fallback path.
type EntitySet struct {
	Entities        []string `json:"entities"`
	Keyphrases      []string `json:"keyphrases"`
	ChunksProcessed int      `json:"chunksProcessed"`
}

// Empty reports whether no entities were extracted.
func (s *EntitySet) Empty() bool {
	return len(s.Entities) == 0
}

// Result carries the entity set plus the extraction service's own layout
// guess, which the orchestrator falls back to when visual mapping is skipped
// or fails. A failed fetch yields an empty set with Err attached, never a
// propagated transport error.
type Result struct {
	EntitySet
	Layout *layout.ExtractorLayout
	Err    *errors.PipelineError
}

type ingestRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

type wireEntities struct {
	Entities        []string                `json:"entities"`
	Keyphrases      []string                `json:"keyphrases"`
	ChunksProcessed int                     `json:"chunksProcessed"`
	Layout          *layout.ExtractorLayout `json:"layout,omitempty"`
}
