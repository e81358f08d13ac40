// internal/layout/normalizer.go
package layout

import (
	"strings"
	"time"
)

// Normalize converts any upstream layout shape into a canonical layout.
// It is a pure function: the three fixed sections are always present, every
// component type carries the namespace prefix, missing match metadata gets
// confidence 1.0 and matchType "unknown", and confidences are clamped to
// [0,1]. Normalizing an already-canonical layout returns an equal value.
func Normalize(src Source, sessionID string, now time.Time) *CanonicalLayout {
	switch s := src.(type) {
	case *CanonicalLayout:
		return normalizeCanonical(s)
	case *ExtractorLayout:
		return normalizeExtractor(s, sessionID, now)
	case *MapperLayout:
		return normalizeMapper(s, sessionID, now)
	}
	// The union is sealed; this is unreachable for any shape the adapters
	// can construct.
	return emptyCanonical("", sessionID, "", now)
}

// EmptyLayout builds a canonical layout with all sections present and empty.
// Used when visual mapping fails and no extractor guess exists either.
func EmptyLayout(template, sessionID, sourceStage string, now time.Time) *CanonicalLayout {
	return emptyCanonical(template, sessionID, sourceStage, now)
}

func normalizeCanonical(src *CanonicalLayout) *CanonicalLayout {
	out := &CanonicalLayout{
		Template: src.Template,
		Sections: make(map[string][]ComponentInstance, len(SectionNames)),
		Metadata: src.Metadata,
	}
	for _, name := range SectionNames {
		components := src.Sections[name]
		normalized := make([]ComponentInstance, 0, len(components))
		for _, c := range components {
			normalized = append(normalized, ComponentInstance{
				Type:       applyNamespace(c.Type),
				Props:      ensureProps(c.Props),
				Confidence: clampConfidence(c.Confidence),
				MatchType:  defaultMatchType(c.MatchType),
			})
		}
		out.Sections[name] = normalized
	}
	return out
}

func normalizeExtractor(src *ExtractorLayout, sessionID string, now time.Time) *CanonicalLayout {
	out := emptyCanonical(src.Template, sessionID, "extract-entities", now)
	for name, components := range src.Sections {
		section, ok := canonicalSection(name)
		if !ok {
			section = SectionMain
		}
		for _, c := range components {
			// The extractor's guess computes no confidence; attach the
			// defaults so downstream consumers never branch on absence.
			out.Sections[section] = append(out.Sections[section], ComponentInstance{
				Type:       applyNamespace(c.Type),
				Props:      ensureProps(c.Props),
				Confidence: 1.0,
				MatchType:  MatchUnknown,
			})
		}
	}
	return out
}

func normalizeMapper(src *MapperLayout, sessionID string, now time.Time) *CanonicalLayout {
	out := emptyCanonical(src.Template, sessionID, "map-visual", now)
	for name, components := range src.Sections {
		section, ok := canonicalSection(name)
		if !ok {
			section = SectionMain
		}
		for _, c := range components {
			confidence := 1.0
			if c.Confidence != nil {
				confidence = clampConfidence(*c.Confidence)
			}
			out.Sections[section] = append(out.Sections[section], ComponentInstance{
				Type:       applyNamespace(c.Type),
				Props:      ensureProps(c.Props),
				Confidence: confidence,
				MatchType:  defaultMatchType(c.MatchType),
			})
		}
	}
	return out
}

func emptyCanonical(template, sessionID, sourceStage string, now time.Time) *CanonicalLayout {
	sections := make(map[string][]ComponentInstance, len(SectionNames))
	for _, name := range SectionNames {
		sections[name] = []ComponentInstance{}
	}
	return &CanonicalLayout{
		Template: template,
		Sections: sections,
		Metadata: Metadata{
			SessionID:   sessionID,
			CreatedAt:   now,
			UpdatedAt:   now,
			SourceStage: sourceStage,
		},
	}
}

func canonicalSection(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SectionHero:
		return SectionHero, true
	case SectionMain, "content", "body":
		return SectionMain, true
	case SectionFooter:
		return SectionFooter, true
	}
	return "", false
}

func applyNamespace(componentType string) string {
	t := strings.TrimSpace(componentType)
	if t == "" {
		return NamespacePrefix + "unknown"
	}
	if strings.HasPrefix(t, NamespacePrefix) {
		return t
	}
	return NamespacePrefix + t
}

func ensureProps(props map[string]interface{}) map[string]interface{} {
	if props == nil {
		return map[string]interface{}{}
	}
	return props
}

func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

func defaultMatchType(matchType string) string {
	if matchType == "" {
		return MatchUnknown
	}
	return matchType
}
