// internal/services/progress_service.go
package services

import (
	"math"
	"strings"

	"github.com/scholarforge/scholarforge/internal/models"
)

// SectionCompletionMinChars is the minimum drafted length for a
// section to count toward paper progress.
const SectionCompletionMinChars = 300

// SectionStub returns the placeholder content a section is seeded with
// when the outline is confirmed.
func SectionStub(section models.OutlineSection) string {
	return "## " + section.Title + "\n\n" + section.Description
}

// SectionCompleted reports whether a section's draft counts as done:
// it must exist, be non-empty, differ from its seeded stub and reach
// the minimum length.
func SectionCompleted(section models.OutlineSection, paperData map[string]models.SectionContent) bool {
	content, exists := paperData[section.Title]
	if !exists {
		return false
	}

	markdown := strings.TrimSpace(content.Markdown)
	if markdown == "" {
		return false
	}

	if markdown == strings.TrimSpace(SectionStub(section)) {
		return false
	}

	return len(content.Markdown) >= SectionCompletionMinChars
}

// DashboardMilestones are the coarse stages shown on the dashboard.
var DashboardMilestones = []string{
	"Profile Setup", "Topic Selection", "Outline Created", "Introduction",
	"Methodology", "Results/Discussion", "Conclusion", "Final Draft",
}

// SectionStatus summarizes one outline section for the dashboard.
type SectionStatus struct {
	Title      string `json:"title"`
	Completed  bool   `json:"completed"`
	CharCount  int    `json:"char_count"`
	HasContent bool   `json:"has_content"`
}

// Dashboard is the progress view returned to the frontend.
type Dashboard struct {
	Progress   int             `json:"progress"`
	Milestones []string        `json:"milestones"`
	Sections   []SectionStatus `json:"sections"`
}

// BuildDashboard derives the dashboard view from the project.
func BuildDashboard(p *models.Project) *Dashboard {
	dashboard := &Dashboard{
		Progress:   PaperProgress(p),
		Milestones: DashboardMilestones,
		Sections:   []SectionStatus{},
	}
	if p == nil {
		return dashboard
	}

	for _, section := range p.Outline {
		content := p.PaperData[section.Title]
		dashboard.Sections = append(dashboard.Sections, SectionStatus{
			Title:      section.Title,
			Completed:  SectionCompleted(section, p.PaperData),
			CharCount:  len(content.Markdown),
			HasContent: strings.TrimSpace(content.Markdown) != "",
		})
	}

	return dashboard
}

// PaperProgress derives the completion percentage from the outline and
// drafted sections. An empty outline is 0, not an error. Stale keys in
// paper data that no longer match an outline section are ignored.
func PaperProgress(p *models.Project) int {
	if p == nil || len(p.Outline) == 0 {
		return 0
	}

	completed := 0
	for _, section := range p.Outline {
		if SectionCompleted(section, p.PaperData) {
			completed++
		}
	}

	return int(math.Round(100 * float64(completed) / float64(len(p.Outline))))
}
