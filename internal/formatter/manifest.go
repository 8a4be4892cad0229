package formatter

import (
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
)

// ManifestEntry records the outcome of exporting one list.
type ManifestEntry struct {
	ListType models.ListType `json:"list_type"`
	Books    int             `json:"books"`
	Files    []string        `json:"files,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Manifest summarises a multi-list export.
type Manifest struct {
	Format          Format          `json:"format"`
	OutputDirectory string          `json:"output_directory"`
	CreatedAt       time.Time       `json:"created_at"`
	Lists           []ManifestEntry `json:"lists"`
}

// WriteExportManifest writes m as indented JSON to path.
func WriteExportManifest(m *Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to generate manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
