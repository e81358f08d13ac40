// cmd/tools/catalog-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pagegen-pipeline/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	// Add command flags
	name := addCmd.String("name", "", "Component name (e.g., pricing-table)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Pricing Table)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "content", "Category (content, interactive, media, navigation)")
	synonyms := addCmd.String("synonyms", "", "Comma-separated synonym terms")
	sections := addCmd.String("sections", "main", "Comma-separated sections (hero, main, footer)")
	addCmd.StringVar(&registryPath, "path", "configs/component-registry.json", "Path to registry file")

	validateCmd.StringVar(&registryPath, "path", "configs/component-registry.json", "Path to registry file")
	listCmd.StringVar(&registryPath, "path", "configs/component-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *name == "" || *displayName == "" || *description == "" {
			fmt.Println("Error: name, displayName, and description are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		component := registry.Component{
			Name:        *name,
			DisplayName: *displayName,
			Description: *description,
			Category:    *category,
			Synonyms:    splitList(*synonyms),
			Sections:    splitList(*sections),
		}
		if err := addComponent(&component); err != nil {
			fmt.Printf("Error adding component: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added component: %s\n", *name)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			fmt.Printf("Registry failed schema validation: %v\n", err)
			os.Exit(1)
		}
		if err := reg.Validate(); err != nil {
			fmt.Printf("Registry failed consistency validation: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry valid: %d components, version %s\n", len(reg.Components), reg.Version)

	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		for _, c := range reg.Components {
			fmt.Printf("%-16s %-20s [%s] sections=%s\n", c.Name, c.DisplayName, c.Category, strings.Join(c.Sections, ","))
		}

	default:
		help()
		os.Exit(1)
	}
}

func addComponent(component *registry.Component) error {
	reg, err := registry.LoadRegistry(registryPath)
	if os.IsNotExist(err) {
		reg = registry.Default()
	} else if err != nil {
		return err
	}

	if reg.Find(component.Name) != nil {
		return fmt.Errorf("component %q already exists", component.Name)
	}

	reg.Components = append(reg.Components, *component)
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if err := reg.Validate(); err != nil {
		return err
	}
	return registry.SaveRegistry(registryPath, reg)
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func help() {
	fmt.Println("Usage: catalog-updater <add|validate|list> [flags]")
	fmt.Println("  add      -name -displayName -description [-category -synonyms -sections -path]")
	fmt.Println("  validate [-path]")
	fmt.Println("  list     [-path]")
}
