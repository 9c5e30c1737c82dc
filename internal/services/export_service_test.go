// internal/services/export_service_test.go
package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarforge/scholarforge/internal/models"
)

func newExportFixture(t *testing.T) (*ProjectService, *ExportService) {
	t.Helper()

	projects := newTestProjectService(t)
	outline := NewOutlineService(projects, &fakeCompleter{
		structuredJSON: `[
			{"title": "Introduction", "description": "Opens the paper.", "subsections": []},
			{"title": "Methodology", "description": "How the study was run.", "subsections": []}
		]`,
	})
	seedOutline(t, projects, outline, "export-user")

	return projects, NewExportService(projects, filepath.Join(t.TempDir(), "exports"))
}

func TestExportDocumentRejectsUnknownFormat(t *testing.T) {
	_, svc := newExportFixture(t)

	_, err := svc.ExportDocument("export-user", models.ExportFormat("docx"))
	assert.Error(t, err)
}

func TestExportDocumentPreconditions(t *testing.T) {
	projects := newTestProjectService(t)
	svc := NewExportService(projects, filepath.Join(t.TempDir(), "exports"))

	// no topic yet
	_, err := projects.Start("bare-user")
	require.NoError(t, err)
	_, err = svc.ExportDocument("bare-user", models.ExportFormatMarkdown)
	assert.ErrorIs(t, err, ErrTopicRequired)

	// topic but no confirmed outline
	seedProject(t, projects, "outline-less")
	_, err = svc.ExportDocument("outline-less", models.ExportFormatMarkdown)
	assert.ErrorIs(t, err, ErrOutlineRequired)
}

func TestExportDocumentMarkdown(t *testing.T) {
	projects, svc := newExportFixture(t)

	paper := NewPaperService(projects, &fakeCompleter{})
	_, err := paper.SaveSection("export-user", "Introduction", models.SectionContent{
		Markdown: "## Introduction\n\nLoad shedding keeps **latency** bounded.",
	})
	require.NoError(t, err)

	result, err := svc.ExportDocument("export-user", models.ExportFormatMarkdown)
	require.NoError(t, err)

	assert.Equal(t, "Adaptive load shedding", result.Title)
	assert.Equal(t, "Ada", result.Author)
	assert.Contains(t, result.Content, "# Adaptive load shedding")
	assert.Contains(t, result.Content, "**Author:** Ada")
	assert.Contains(t, result.Content, "Load shedding keeps **latency** bounded.")

	// the drafted section supplies its own heading
	assert.Equal(t, 1, strings.Count(result.Content, "## Introduction"))

	// the saved copy matches the returned content
	data, err := os.ReadFile(result.FilePath)
	require.NoError(t, err)
	assert.Equal(t, result.Content, string(data))
	assert.Equal(t, int64(len(result.Content)), result.FileSize)
	assert.True(t, strings.HasSuffix(result.FilePath, ".markdown"))
}

func TestExportDocumentHTML(t *testing.T) {
	projects, svc := newExportFixture(t)

	paper := NewPaperService(projects, &fakeCompleter{})
	_, err := paper.SaveSection("export-user", "Introduction", models.SectionContent{
		Markdown: "## Introduction\n\nShedding under **overload** & pressure.",
	})
	require.NoError(t, err)

	result, err := svc.ExportDocument("export-user", models.ExportFormatHTML)
	require.NoError(t, err)

	assert.Contains(t, result.Content, "<!DOCTYPE html>")
	assert.Contains(t, result.Content, "<h1>Adaptive load shedding</h1>")
	assert.Contains(t, result.Content, "<h2>Introduction</h2>")
	assert.Contains(t, result.Content, "<strong>overload</strong>")
	assert.Contains(t, result.Content, "&amp; pressure")
}

func TestExportDocumentJSON(t *testing.T) {
	_, svc := newExportFixture(t)

	result, err := svc.ExportDocument("export-user", models.ExportFormatJSON)
	require.NoError(t, err)

	var doc struct {
		Title    string `json:"title"`
		Author   string `json:"author"`
		Sections []struct {
			Title     string   `json:"title"`
			Content   string   `json:"content"`
			Citations []string `json:"citations"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Content), &doc))
	assert.Equal(t, "Adaptive load shedding", doc.Title)
	assert.Equal(t, "Ada", doc.Author)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Introduction", doc.Sections[0].Title)
	assert.NotNil(t, doc.Sections[0].Citations)
}

func TestExportDocumentPlaceholderForUndraftedSections(t *testing.T) {
	projects := newTestProjectService(t)
	outline := NewOutlineService(projects, &fakeCompleter{
		structuredJSON: `[{"title": "Introduction", "description": "Opens.", "subsections": []}]`,
	})
	seedProject(t, projects, "placeholder-user")
	_, err := outline.SubmitValidation(context.Background(), "placeholder-user", validationAnswers)
	require.NoError(t, err)

	svc := NewExportService(projects, filepath.Join(t.TempDir(), "exports"))
	result, err := svc.ExportDocument("placeholder-user", models.ExportFormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, result.Content, SectionPlaceholder)
}
