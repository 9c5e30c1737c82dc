// internal/services/export_service.go
package services

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/scholarforge/scholarforge/internal/errors"
	"github.com/scholarforge/scholarforge/internal/models"
)

// SectionPlaceholder fills a page whose section has no draft yet.
const SectionPlaceholder = "This section has not been written yet."

// ExportService renders the assembled paper as a document: a title
// page followed by one page per outline section.
type ExportService struct {
	Projects  *ProjectService
	ExportDir string
}

func NewExportService(projects *ProjectService, exportDir string) *ExportService {
	if exportDir == "" {
		exportDir = filepath.Join("data", "exports")
	}
	return &ExportService{
		Projects:  projects,
		ExportDir: exportDir,
	}
}

// ExportDocument builds the document in the requested format and saves
// a copy under the export directory. Preconditions fail fast: without
// a topic, an author name and a confirmed outline there is no paper.
func (s *ExportService) ExportDocument(userID string, format models.ExportFormat) (*models.ExportResult, error) {
	switch format {
	case models.ExportFormatMarkdown, models.ExportFormatHTML, models.ExportFormatJSON:
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported export format %q", format), nil)
	}

	project, err := s.Projects.GetProject(userID)
	if err != nil {
		return nil, err
	}

	if project.Topic == nil {
		return nil, apperrors.NewValidationError("cannot export without a selected topic", ErrTopicRequired)
	}
	if project.UserProfile.Name == "" {
		return nil, apperrors.NewValidationError("cannot export without an author name in the profile", ErrProfileRequired)
	}
	if len(project.Outline) == 0 {
		return nil, apperrors.NewValidationError("cannot export without a confirmed outline", ErrOutlineRequired)
	}

	result := &models.ExportResult{
		UserID:      userID,
		Title:       project.Topic.Title,
		Author:      project.UserProfile.Name,
		Format:      format,
		GeneratedAt: time.Now(),
	}

	switch format {
	case models.ExportFormatMarkdown:
		result.Content = s.formatAsMarkdown(project)
	case models.ExportFormatHTML:
		result.Content = s.formatAsHTML(project)
	case models.ExportFormatJSON:
		content, err := s.formatAsJSON(project)
		if err != nil {
			return nil, err
		}
		result.Content = content
	}

	filePath, fileSize, err := s.saveExportToDataDir(result)
	if err != nil {
		return nil, err
	}
	result.FilePath = filePath
	result.FileSize = fileSize

	return result, nil
}

// sectionBody returns the drafted markdown for a section, or the
// placeholder when nothing usable has been written.
func sectionBody(project *models.Project, section models.OutlineSection) string {
	content, exists := project.PaperData[section.Title]
	if !exists || strings.TrimSpace(content.Markdown) == "" {
		return SectionPlaceholder
	}
	return content.Markdown
}

func (s *ExportService) formatAsMarkdown(project *models.Project) string {
	var sb strings.Builder

	// title page
	sb.WriteString("# " + project.Topic.Title + "\n\n")
	sb.WriteString("**Author:** " + project.UserProfile.Name + "\n\n")
	if project.UserProfile.DegreeName != "" {
		sb.WriteString("**Degree:** " + project.UserProfile.DegreeName + "\n\n")
	}
	if project.UserProfile.Stream != "" {
		sb.WriteString("**Field of Study:** " + project.UserProfile.Stream + "\n\n")
	}
	sb.WriteString("**Academic Level:** " + string(project.UserProfile.AcademicLevel) + "\n\n")
	sb.WriteString("**Date:** " + time.Now().Format("January 2, 2006") + "\n")

	for _, section := range project.Outline {
		sb.WriteString("\n---\n\n")
		body := sectionBody(project, section)
		// drafted sections already open with their own heading
		if !strings.HasPrefix(strings.TrimSpace(body), "#") {
			sb.WriteString("## " + section.Title + "\n\n")
		}
		sb.WriteString(body)
		sb.WriteString("\n")
	}

	return sb.String()
}

func (s *ExportService) formatAsHTML(project *models.Project) string {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<title>" + html.EscapeString(project.Topic.Title) + "</title>\n")
	sb.WriteString(`<style>
body { font-family: Georgia, serif; max-width: 800px; margin: 0 auto; padding: 2em; line-height: 1.6; }
.title-page { text-align: center; page-break-after: always; padding: 6em 0; }
.section { page-break-before: always; }
h1 { font-size: 2em; }
</style>
`)
	sb.WriteString("</head>\n<body>\n")

	sb.WriteString("<div class=\"title-page\">\n")
	sb.WriteString("<h1>" + html.EscapeString(project.Topic.Title) + "</h1>\n")
	sb.WriteString("<p><strong>" + html.EscapeString(project.UserProfile.Name) + "</strong></p>\n")
	if project.UserProfile.DegreeName != "" {
		sb.WriteString("<p>" + html.EscapeString(project.UserProfile.DegreeName) + "</p>\n")
	}
	if project.UserProfile.Stream != "" {
		sb.WriteString("<p>" + html.EscapeString(project.UserProfile.Stream) + "</p>\n")
	}
	sb.WriteString("<p>" + time.Now().Format("January 2, 2006") + "</p>\n")
	sb.WriteString("</div>\n")

	for _, section := range project.Outline {
		sb.WriteString("<div class=\"section\">\n")
		body := sectionBody(project, section)
		if !strings.HasPrefix(strings.TrimSpace(body), "#") {
			sb.WriteString("<h2>" + html.EscapeString(section.Title) + "</h2>\n")
		}
		sb.WriteString(markdownToHTML(body))
		sb.WriteString("</div>\n")
	}

	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

func (s *ExportService) formatAsJSON(project *models.Project) (string, error) {
	type exportSection struct {
		Title     string   `json:"title"`
		Content   string   `json:"content"`
		Citations []string `json:"citations"`
	}

	sections := make([]exportSection, 0, len(project.Outline))
	for _, section := range project.Outline {
		content := project.PaperData[section.Title]
		body := sectionBody(project, section)
		citations := content.Citations
		if citations == nil {
			citations = []string{}
		}
		sections = append(sections, exportSection{
			Title:     section.Title,
			Content:   body,
			Citations: citations,
		})
	}

	doc := map[string]interface{}{
		"title":          project.Topic.Title,
		"author":         project.UserProfile.Name,
		"academic_level": project.UserProfile.AcademicLevel,
		"degree":         project.UserProfile.DegreeName,
		"stream":         project.UserProfile.Stream,
		"generated_at":   time.Now().Format(time.RFC3339),
		"sections":       sections,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize export: %w", err)
	}
	return string(data), nil
}

// markdownToHTML covers the subset of markdown the drafts use:
// headings, bold, italics and paragraphs.
func markdownToHTML(markdown string) string {
	var sb strings.Builder

	for _, block := range strings.Split(markdown, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		lines := strings.Split(block, "\n")
		inParagraph := false
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(trimmed, "### "):
				if inParagraph {
					sb.WriteString("</p>\n")
					inParagraph = false
				}
				sb.WriteString("<h3>" + inlineMarkdown(strings.TrimPrefix(trimmed, "### ")) + "</h3>\n")
			case strings.HasPrefix(trimmed, "## "):
				if inParagraph {
					sb.WriteString("</p>\n")
					inParagraph = false
				}
				sb.WriteString("<h2>" + inlineMarkdown(strings.TrimPrefix(trimmed, "## ")) + "</h2>\n")
			case strings.HasPrefix(trimmed, "# "):
				if inParagraph {
					sb.WriteString("</p>\n")
					inParagraph = false
				}
				sb.WriteString("<h1>" + inlineMarkdown(strings.TrimPrefix(trimmed, "# ")) + "</h1>\n")
			default:
				if !inParagraph {
					sb.WriteString("<p>")
					inParagraph = true
				} else {
					sb.WriteString(" ")
				}
				sb.WriteString(inlineMarkdown(trimmed))
			}
		}
		if inParagraph {
			sb.WriteString("</p>\n")
		}
	}

	return sb.String()
}

// inlineMarkdown escapes HTML and renders bold/italic spans.
func inlineMarkdown(text string) string {
	escaped := html.EscapeString(text)

	for {
		start := strings.Index(escaped, "**")
		if start == -1 {
			break
		}
		end := strings.Index(escaped[start+2:], "**")
		if end == -1 {
			break
		}
		end += start + 2
		escaped = escaped[:start] + "<strong>" + escaped[start+2:end] + "</strong>" + escaped[end+2:]
	}

	for {
		start := strings.Index(escaped, "*")
		if start == -1 {
			break
		}
		end := strings.Index(escaped[start+1:], "*")
		if end == -1 {
			break
		}
		end += start + 1
		escaped = escaped[:start] + "<em>" + escaped[start+1:end] + "</em>" + escaped[end+1:]
	}

	return escaped
}

func (s *ExportService) saveExportToDataDir(result *models.ExportResult) (string, int64, error) {
	if err := os.MkdirAll(s.ExportDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	timestamp := result.GeneratedAt.Format("20060102_150405")
	fileName := fmt.Sprintf("%s_paper_%s_%s.%s",
		result.UserID, timestamp, uuid.NewString()[:8], result.Format)

	filePath := filepath.Join(s.ExportDir, fileName)

	if err := os.WriteFile(filePath, []byte(result.Content), 0644); err != nil {
		return "", 0, fmt.Errorf("failed to write export file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat export file: %w", err)
	}

	return filePath, fileInfo.Size(), nil
}
