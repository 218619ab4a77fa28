package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/esgpanel/internal/config"
)

// CheckExisting returns an error if dir already holds an esgpanel.yml.
func CheckExisting(dir string) error {
	path := filepath.Join(dir, config.DefaultPath)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("project already initialized\n\nFound existing: %s\n\nUse 'esgpanel init --force' to overwrite the configuration", config.DefaultPath)
	}
	return nil
}
