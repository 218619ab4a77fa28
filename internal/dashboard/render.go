package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
)

//go:embed templates/*
var templatesFS embed.FS

var page = template.Must(template.ParseFS(templatesFS, "templates/dashboard.html.tmpl"))

// Render writes the dashboard page for d.
func Render(w io.Writer, d *Data) error {
	// render fully before writing so a template error leaves w untouched
	var buf bytes.Buffer
	if err := page.Execute(&buf, d); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile renders d to path, creating parent directories.
func WriteFile(path string, d *Data) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, d); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
