package services

import (
	"strings"
	"testing"

	"github.com/scholarforge/scholarforge/internal/models"
)

func TestSectionStub(t *testing.T) {
	section := models.OutlineSection{Title: "Methods", Description: "How the study ran."}
	want := "## Methods\n\nHow the study ran."
	if got := SectionStub(section); got != want {
		t.Errorf("SectionStub() = %q, want %q", got, want)
	}
}

func TestSectionCompleted(t *testing.T) {
	section := models.OutlineSection{Title: "Methods", Description: "How the study ran."}
	longDraft := strings.Repeat("Detailed methodology paragraph. ", 20)

	tests := []struct {
		name      string
		paperData map[string]models.SectionContent
		want      bool
	}{
		{"missing section", map[string]models.SectionContent{}, false},
		{"empty content", map[string]models.SectionContent{"Methods": {Markdown: "   \n"}}, false},
		{"still the stub", map[string]models.SectionContent{"Methods": {Markdown: SectionStub(section)}}, false},
		{"stub with extra whitespace", map[string]models.SectionContent{"Methods": {Markdown: "  " + SectionStub(section) + "\n"}}, false},
		{"real but short", map[string]models.SectionContent{"Methods": {Markdown: "A short note."}}, false},
		{"real and long enough", map[string]models.SectionContent{"Methods": {Markdown: longDraft}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SectionCompleted(section, tt.paperData); got != tt.want {
				t.Errorf("SectionCompleted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaperProgress(t *testing.T) {
	longDraft := strings.Repeat("Substantial drafted prose. ", 20)

	empty := models.NewProject()
	if got := PaperProgress(empty); got != 0 {
		t.Errorf("empty outline progress = %d, want 0", got)
	}
	if got := PaperProgress(nil); got != 0 {
		t.Errorf("nil project progress = %d, want 0", got)
	}

	p := models.NewProject()
	p.Outline = []models.OutlineSection{
		{Title: "One"}, {Title: "Two"}, {Title: "Three"},
	}
	p.PaperData = map[string]models.SectionContent{
		"One": {Markdown: longDraft},
		// stale key not in the outline must not count
		"Ghost": {Markdown: longDraft},
	}

	if got := PaperProgress(p); got != 33 {
		t.Errorf("progress = %d, want 33", got)
	}

	p.PaperData["Two"] = models.SectionContent{Markdown: longDraft}
	if got := PaperProgress(p); got != 67 {
		t.Errorf("progress = %d, want 67", got)
	}

	p.PaperData["Three"] = models.SectionContent{Markdown: longDraft}
	if got := PaperProgress(p); got != 100 {
		t.Errorf("progress = %d, want 100", got)
	}
}

func TestBuildDashboard(t *testing.T) {
	longDraft := strings.Repeat("Substantial drafted prose. ", 20)

	p := models.NewProject()
	p.Outline = []models.OutlineSection{
		{Title: "Introduction"}, {Title: "Conclusion"},
	}
	p.PaperData = map[string]models.SectionContent{
		"Introduction": {Markdown: longDraft},
	}

	dashboard := BuildDashboard(p)

	if dashboard.Progress != 50 {
		t.Errorf("progress = %d, want 50", dashboard.Progress)
	}
	if len(dashboard.Milestones) != 8 {
		t.Errorf("milestones = %d, want 8", len(dashboard.Milestones))
	}
	if len(dashboard.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(dashboard.Sections))
	}
	if !dashboard.Sections[0].Completed || dashboard.Sections[0].CharCount == 0 {
		t.Errorf("introduction status wrong: %+v", dashboard.Sections[0])
	}
	if dashboard.Sections[1].Completed || dashboard.Sections[1].HasContent {
		t.Errorf("conclusion status wrong: %+v", dashboard.Sections[1])
	}
}
