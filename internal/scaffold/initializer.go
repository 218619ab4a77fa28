package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/dyluth/esgpanel/internal/config"
	"github.com/dyluth/esgpanel/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// Directories created by Initialize, relative to the project root.
var Directories = []string{
	filepath.Join("data", "raw"),
	filepath.Join("data", "processed"),
	filepath.Join("results", "regression"),
	filepath.Join("results", "models"),
}

// Options controls Initialize.
type Options struct {
	Dir     string // project root, "" for the working directory
	Project string // run store namespace written into the config
	Force   bool   // overwrite an existing esgpanel.yml
}

// Initialize writes esgpanel.yml and creates the data and results layout.
// It returns the paths it created.
func Initialize(opts Options) ([]string, error) {
	if opts.Project == "" {
		opts.Project = "default"
	}
	cfgPath := filepath.Join(opts.Dir, config.DefaultPath)

	if !opts.Force {
		if err := CheckExisting(opts.Dir); err != nil {
			return nil, err
		}
	}

	content, err := renderConfig(opts.Project)
	if err != nil {
		return nil, err
	}

	var created []string
	for _, dir := range Directories {
		path := filepath.Join(opts.Dir, dir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", path, err)
		}
		created = append(created, dir+string(filepath.Separator))
	}

	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", cfgPath, err)
	}
	created = append(created, config.DefaultPath)

	if _, err := config.Load(cfgPath); err != nil {
		return nil, fmt.Errorf("created %s is invalid: %w", cfgPath, err)
	}
	return created, nil
}

func renderConfig(project string) ([]byte, error) {
	raw, err := templatesFS.ReadFile("templates/esgpanel.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read esgpanel.yml template: %w", err)
	}
	tmpl, err := template.New("esgpanel.yml").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse esgpanel.yml template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Project string }{project}); err != nil {
		return nil, fmt.Errorf("failed to render esgpanel.yml: %w", err)
	}
	return buf.Bytes(), nil
}

// PrintSuccess prints the created paths and the next steps.
func PrintSuccess(created []string) {
	printer.Success("Initialized esgpanel project\n\n")
	printer.Info("Created:\n")
	for _, p := range created {
		printer.Info("  • %s\n", p)
	}
	printer.Info("\nNext steps:\n")
	printer.Info("  1. Put the World Bank exports and country classification in data/raw/\n")
	printer.Info("  2. Review esgpanel.yml\n")
	printer.Info("  3. Run the pipeline: esgpanel run --dashboard\n")
}
