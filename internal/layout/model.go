// internal/layout/model.go
package layout

import "time"

// NamespacePrefix marks every canonical component type so downstream
// renderers never special-case unprefixed names.
const NamespacePrefix = "ui/"

// The canonical section set. Every canonical layout carries all three,
// possibly empty.
const (
	SectionHero   = "hero"
	SectionMain   = "main"
	SectionFooter = "footer"
)

// SectionNames in render order.
var SectionNames = []string{SectionHero, SectionMain, SectionFooter}

// MatchType values for a component match.
const (
	MatchExact    = "exact"
	MatchSynonym  = "synonym"
	MatchFuzzy    = "fuzzy"
	MatchFallback = "fallback"
	MatchUnknown  = "unknown"
)

// ComponentInstance is one placed component in a canonical layout.
type ComponentInstance struct {
	Type       string                 `json:"type"`
	Props      map[string]interface{} `json:"props"`
	Confidence float64                `json:"confidence"`
	MatchType  string                 `json:"matchType"`
}

// Metadata describes the provenance of a canonical layout.
type Metadata struct {
	SessionID   string    `json:"sessionId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	SourceStage string    `json:"sourceStage"`
}

// CanonicalLayout is the single normalized page-description structure all
// pipeline paths converge to.
type CanonicalLayout struct {
	Template string                         `json:"template"`
	Sections map[string][]ComponentInstance `json:"sections"`
	Metadata Metadata                       `json:"metadata"`
}

func (l *CanonicalLayout) sourceStage() string { return l.Metadata.SourceStage }

// ComponentCount returns the total number of placed components.
func (l *CanonicalLayout) ComponentCount() int {
	n := 0
	for _, components := range l.Sections {
		n += len(components)
	}
	return n
}

// Source is the sealed tagged union of upstream layout shapes the normalizer
// accepts. Exactly three shapes exist: the entity-extraction service's own
// guess, the visual-mapping service's result, and an already-canonical
// layout. A fourth shape cannot slip in silently.
type Source interface {
	sourceStage() string
}

// ExtractorComponent is a component as guessed by the entity-extraction
// service. It carries no match metadata.
type ExtractorComponent struct {
	Type  string                 `json:"type"`
	Props map[string]interface{} `json:"props,omitempty"`
}

// ExtractorLayout is the entity-extraction service's own layout guess, used
// by the fallback path when visual mapping is skipped or fails.
type ExtractorLayout struct {
	Template string                          `json:"template"`
	Sections map[string][]ExtractorComponent `json:"sections"`
}

func (l *ExtractorLayout) sourceStage() string { return "extract-entities" }

// MapperComponent is a component as placed by the visual-mapping service.
// Confidence is a pointer because the service may omit it.
type MapperComponent struct {
	Type       string                 `json:"type"`
	Props      map[string]interface{} `json:"props,omitempty"`
	Confidence *float64               `json:"confidence,omitempty"`
	MatchType  string                 `json:"matchType,omitempty"`
}

// MapperLayout is the visual-mapping service's section structure.
type MapperLayout struct {
	Template string                       `json:"template"`
	Sections map[string][]MapperComponent `json:"sections"`
	Count    int                          `json:"count"`
}

func (l *MapperLayout) sourceStage() string { return "map-visual" }

// ComponentMatch relates an extracted term to a catalog entry. Many matches
// may reference the same entry; it is a relation, not an ownership edge.
type ComponentMatch struct {
	Term       string  `json:"term"`
	Component  string  `json:"component"`
	Confidence float64 `json:"confidence"`
	MatchType  string  `json:"matchType"`
}
