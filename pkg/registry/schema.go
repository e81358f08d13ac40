// pkg/registry/schema.go
package registry

// ComponentRegistry is the source-of-truth list of UI components the
// pipeline can place. The visual-mapping service serves the live catalog;
// this file-backed registry seeds the cache and drives offline tooling.
type ComponentRegistry struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"lastUpdated"`
	Components  []Component `json:"components"`
}

// Component describes one placeable component type.
type Component struct {
	Name         string                 `json:"name"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Synonyms     []string               `json:"synonyms,omitempty"`
	Sections     []string               `json:"sections,omitempty"`
	PropsSchema  map[string]interface{} `json:"propsSchema,omitempty"`
	ExampleProps map[string]interface{} `json:"exampleProps,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
}
