// internal/models/export.go
package models

import (
	"time"
)

// ExportFormat names a document rendering the export service can
// produce.
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatHTML     ExportFormat = "html"
	ExportFormatJSON     ExportFormat = "json"
)

// ExportResult is one rendered paper artifact.
type ExportResult struct {
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	Format      ExportFormat `json:"format"`
	Content     string       `json:"content"`
	FilePath    string       `json:"file_path,omitempty"`
	FileSize    int64        `json:"file_size,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}
