// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"pagegen-pipeline/internal/catalog"
	"pagegen-pipeline/internal/layout"

	"github.com/xeipuuv/gojsonschema"
)

const registrySchema = `{
	"type": "object",
	"properties": {
		"version":     {"type": "string"},
		"lastUpdated": {"type": "string"},
		"components": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name":        {"type": "string", "minLength": 1},
					"displayName": {"type": "string"},
					"description": {"type": "string"},
					"category":    {"type": "string"},
					"synonyms":    {"type": "array", "items": {"type": "string"}},
					"sections": {
						"type": "array",
						"items": {"enum": ["hero", "main", "footer"]}
					}
				},
				"required": ["name", "displayName", "description"]
			}
		}
	},
	"required": ["version", "components"]
}`

// LoadRegistry reads and validates a registry file.
func LoadRegistry(path string) (*ComponentRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateBytes(data); err != nil {
		return nil, err
	}
	var reg ComponentRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// SaveRegistry writes the registry back, pretty-printed for review diffs.
func SaveRegistry(path string, reg *ComponentRegistry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ValidateBytes checks raw registry JSON against the registry schema.
func ValidateBytes(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(registrySchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("registry not validatable: %w", err)
	}
	if !result.Valid() {
		details := ""
		for _, desc := range result.Errors() {
			if details != "" {
				details += "; "
			}
			details += desc.String()
		}
		return fmt.Errorf("registry invalid: %s", details)
	}
	return nil
}

// Validate checks the in-memory registry for duplicate names and unknown
// sections.
func (r *ComponentRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Components))
	sections := make(map[string]bool, len(layout.SectionNames))
	for _, name := range layout.SectionNames {
		sections[name] = true
	}
	for _, c := range r.Components {
		if c.Name == "" {
			return fmt.Errorf("component with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate component name %q", c.Name)
		}
		seen[c.Name] = true
		for _, s := range c.Sections {
			if !sections[s] {
				return fmt.Errorf("component %q names unknown section %q", c.Name, s)
			}
		}
	}
	return nil
}

// Find returns the component with the given name, or nil.
func (r *ComponentRegistry) Find(name string) *Component {
	for i := range r.Components {
		if r.Components[i].Name == name {
			return &r.Components[i]
		}
	}
	return nil
}

// CatalogEntries converts the registry into catalog cache entries, used to
// warm the catalog before the first live fetch.
func (r *ComponentRegistry) CatalogEntries() []catalog.Entry {
	entries := make([]catalog.Entry, 0, len(r.Components))
	for _, c := range r.Components {
		entries = append(entries, catalog.Entry{
			Name:         c.Name,
			DisplayName:  c.DisplayName,
			Description:  c.Description,
			ExampleProps: c.ExampleProps,
		})
	}
	return entries
}

// Default is the built-in component set, enough to render a landing page
// when no registry file is deployed.
func Default() *ComponentRegistry {
	return &ComponentRegistry{
		Version: "1.0.0",
		Components: []Component{
			{Name: "header", DisplayName: "Header", Description: "Page heading with title text", Category: "content", Synonyms: []string{"заголовок", "heading", "title"}, Sections: []string{layout.SectionHero}},
			{Name: "text-block", DisplayName: "Text Block", Description: "Paragraph of body text", Category: "content", Synonyms: []string{"текст", "paragraph"}, Sections: []string{layout.SectionMain}},
			{Name: "button", DisplayName: "Button", Description: "Call-to-action button", Category: "interactive", Synonyms: []string{"кнопка", "cta"}, Sections: []string{layout.SectionHero, layout.SectionMain}},
			{Name: "image", DisplayName: "Image", Description: "Single image with optional caption", Category: "media", Synonyms: []string{"картинка", "изображение", "picture"}, Sections: []string{layout.SectionHero, layout.SectionMain}},
			{Name: "form", DisplayName: "Form", Description: "Input form with submit", Category: "interactive", Synonyms: []string{"форма"}, Sections: []string{layout.SectionMain}},
			{Name: "footer-links", DisplayName: "Footer Links", Description: "Link row for the page footer", Category: "navigation", Synonyms: []string{"ссылки", "links"}, Sections: []string{layout.SectionFooter}},
		},
	}
}
