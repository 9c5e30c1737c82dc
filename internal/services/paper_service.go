// internal/services/paper_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/scholarforge/scholarforge/internal/errors"
	"github.com/scholarforge/scholarforge/internal/models"
	"github.com/scholarforge/scholarforge/internal/utils"
)

// Enhancement kinds for existing section content.
const (
	EnhanceExpand       = "expand"
	EnhanceImprove      = "improve"
	EnhanceAddCitations = "add_citations"
	EnhanceRestructure  = "restructure"
)

var enhancementPrompts = map[string]string{
	EnhanceExpand:       "Expand this content with more detailed explanations, examples, and academic depth.",
	EnhanceImprove:      "Improve the academic writing quality, clarity, and flow of this content.",
	EnhanceAddCitations: "Add appropriate placeholder citations [Author, Year] throughout this content where academic sources would be needed.",
	EnhanceRestructure:  "Restructure this content with better organization, headings, and logical flow.",
}

// AnalysisKind is a canned review lens for a drafted section.
type AnalysisKind struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// AnalysisKinds lists the built-in review lenses offered alongside
// free-form analysis prompts.
func AnalysisKinds() []AnalysisKind {
	return []AnalysisKind{
		{ID: "structural", Title: "Structural Analysis", Prompt: "Analyze the structure, architecture and flow of this research paper."},
		{ID: "methodology", Title: "Methodology Critique", Prompt: "Critique the research methodology used in this paper."},
		{ID: "writing", Title: "Academic Writing Excellence", Prompt: "Assess and improve the academic writing style, clarity, and tone."},
		{ID: "innovation", Title: "Research Innovation Assessment", Prompt: "Evaluate the novelty and potential impact of this research."},
		{ID: "ethics", Title: "Research Ethics & Integrity", Prompt: "Review the paper for ethical considerations and research integrity."},
	}
}

// PaperService drafts, enhances and reviews individual paper sections.
type PaperService struct {
	Projects *ProjectService
	LLM      Completer
}

func NewPaperService(projects *ProjectService, llm Completer) *PaperService {
	return &PaperService{
		Projects: projects,
		LLM:      llm,
	}
}

// SaveSection stores manually edited content for an outline section.
func (s *PaperService) SaveSection(userID, sectionTitle string, content models.SectionContent) (*ProjectState, error) {
	return s.Projects.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		if _, ok := p.OutlineSectionByTitle(sectionTitle); !ok {
			return step, apperrors.NewNotFoundError(fmt.Sprintf("section %q is not in the outline", sectionTitle), nil)
		}
		if content.Citations == nil {
			content.Citations = []string{}
		}
		p.PaperData[sectionTitle] = content
		return step, nil
	})
}

// requireDraftContext loads the project and checks the prerequisites
// shared by all generation calls.
func (s *PaperService) requireDraftContext(userID, sectionTitle string) (*models.Project, models.OutlineSection, error) {
	project, err := s.Projects.GetProject(userID)
	if err != nil {
		return nil, models.OutlineSection{}, err
	}
	if project.Topic == nil {
		return nil, models.OutlineSection{}, apperrors.NewValidationError("a topic must be selected before drafting", ErrTopicRequired)
	}
	section, ok := project.OutlineSectionByTitle(sectionTitle)
	if !ok {
		return nil, models.OutlineSection{}, apperrors.NewNotFoundError(fmt.Sprintf("section %q is not in the outline", sectionTitle), nil)
	}
	return project, section, nil
}

func (s *PaperService) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.LLM.CreateChatCompletion(ctx, ChatCompletionRequest{
		Messages: []ChatCompletionMessage{
			{Role: RoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateSection drafts full content for a section and stores it.
// Existing content rides along as context; content carrying "User
// Feedback:" or "User Instructions:" markers is treated as revision
// guidance rather than a base draft.
func (s *PaperService) GenerateSection(ctx context.Context, userID, sectionTitle string) (*ProjectState, error) {
	project, section, err := s.requireDraftContext(userID, sectionTitle)
	if err != nil {
		return nil, err
	}

	existing := project.PaperData[sectionTitle].Markdown
	hasFeedback := strings.Contains(existing, "User Feedback:") || strings.Contains(existing, "User Instructions:")

	var contextBlock string
	if existing != "" {
		header := "Existing Content to Build Upon:"
		if hasFeedback {
			header = "Previous Content and User Instructions:"
		}
		contextBlock = fmt.Sprintf("%s\n%s\n", header, existing)
		if hasFeedback {
			contextBlock += "\nPlease incorporate the user feedback and instructions above when generating the content.\n"
		}
	}

	prompt := fmt.Sprintf(`Generate comprehensive academic content for a %s-level research paper section.

Research Topic: %q
Topic Description: %q
Section Title: %q
Section Description: %q
Academic Level: %s
Field of Study: %s

%s
Generate detailed academic content that includes:
1. Well-structured paragraphs with clear topic sentences
2. Academic language appropriate for %s level
3. Logical flow and transitions between ideas
4. Placeholder citations in format [Author, Year] where appropriate
5. Subsection headings if the section is complex

The content should be substantial (300-800 words) and ready for academic submission.
Format the response in markdown with proper headings and structure.

Do not include generic placeholders - write specific, detailed content relevant to the topic.`,
		project.UserProfile.AcademicLevel,
		project.Topic.Title, project.Topic.Description,
		section.Title, section.Description,
		project.UserProfile.AcademicLevel, project.UserProfile.Stream,
		contextBlock,
		project.UserProfile.AcademicLevel)

	if hasFeedback {
		prompt += "\nMake sure to address all the user feedback and instructions provided."
	}

	generated, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate section content: %w", err)
	}

	utils.NewAPIMetrics().RecordDraftGeneration(userID, "generate")
	return s.storeSectionMarkdown(userID, sectionTitle, generated, false)
}

// GenerateSubsection drafts a single subsection and appends it to the
// section's existing draft.
func (s *PaperService) GenerateSubsection(ctx context.Context, userID, sectionTitle, subsectionTitle string) (*ProjectState, error) {
	project, section, err := s.requireDraftContext(userID, sectionTitle)
	if err != nil {
		return nil, err
	}

	var subsection *models.Subsection
	for i := range section.Subsections {
		if section.Subsections[i].Title == subsectionTitle {
			subsection = &section.Subsections[i]
			break
		}
	}
	if subsection == nil {
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("subsection %q is not part of section %q", subsectionTitle, sectionTitle), nil)
	}

	prompt := fmt.Sprintf(`Generate detailed content for a specific subsection of a research paper.

Research Topic: %q
Main Section: %q
Subsection: %q
Subsection Focus: %q
Academic Level: %s

Generate 2-4 well-developed paragraphs that:
1. Address the specific focus of this subsection
2. Use academic language and structure
3. Include relevant examples or explanations
4. Add placeholder citations [Author, Year] where needed
5. Connect to the broader section and research topic

Format in markdown. Be specific and detailed, not generic.`,
		project.Topic.Title, section.Title,
		subsection.Title, subsection.Description,
		project.UserProfile.AcademicLevel)

	generated, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate subsection content: %w", err)
	}

	utils.NewAPIMetrics().RecordDraftGeneration(userID, "subsection")
	return s.storeSectionMarkdown(userID, sectionTitle, generated, true)
}

// EnhanceSection rewrites existing section content through one of the
// enhancement lenses.
func (s *PaperService) EnhanceSection(ctx context.Context, userID, sectionTitle, enhancementType string) (*ProjectState, error) {
	instruction, ok := enhancementPrompts[enhancementType]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown enhancement type %q", enhancementType), nil)
	}

	project, section, err := s.requireDraftContext(userID, sectionTitle)
	if err != nil {
		return nil, err
	}

	current := project.PaperData[sectionTitle].Markdown
	if strings.TrimSpace(current) == "" {
		return nil, apperrors.NewValidationError("section has no content to enhance", nil)
	}

	prompt := fmt.Sprintf(`%s

Research Topic: %q
Section: %q

Current Content:
---
%s
---

Return the enhanced version in markdown format. Maintain the academic tone and ensure the content remains relevant to the research topic.`,
		instruction, project.Topic.Title, section.Title, current)

	enhanced, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to enhance section content: %w", err)
	}

	utils.NewAPIMetrics().RecordDraftGeneration(userID, "enhance")
	return s.storeSectionMarkdown(userID, sectionTitle, enhanced, false)
}

// AnalyzeSection runs an editor-style review of a drafted section and
// returns the feedback without modifying the draft.
func (s *PaperService) AnalyzeSection(ctx context.Context, userID, sectionTitle, analysisPrompt string) (string, error) {
	// an analysis id selects one of the canned lenses
	for _, kind := range AnalysisKinds() {
		if kind.ID == analysisPrompt {
			analysisPrompt = kind.Prompt
			break
		}
	}
	if strings.TrimSpace(analysisPrompt) == "" {
		return "", apperrors.NewValidationError("an analysis prompt is required", nil)
	}

	project, section, err := s.requireDraftContext(userID, sectionTitle)
	if err != nil {
		return "", err
	}

	content := project.PaperData[sectionTitle].Markdown
	if strings.TrimSpace(content) == "" {
		return "", apperrors.NewValidationError("section has no content to analyze", nil)
	}

	prompt := fmt.Sprintf(`As an expert academic editor, please analyze a section of a research paper.

Research Topic: %q
Current Section: %q

User's Request: %q

Here is the draft of the section:
---
%s
---

Provide your feedback based on the user's request. Format your response using markdown.`,
		project.Topic.Title, section.Title, analysisPrompt, content)

	feedback, err := s.complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to analyze section: %w", err)
	}

	utils.NewAPIMetrics().RecordDraftGeneration(userID, "analyze")
	return feedback, nil
}

// storeSectionMarkdown saves generated markdown, either replacing the
// draft or appending to it. Citations already on the section survive.
func (s *PaperService) storeSectionMarkdown(userID, sectionTitle, markdown string, appendTo bool) (*ProjectState, error) {
	return s.Projects.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		if _, ok := p.OutlineSectionByTitle(sectionTitle); !ok {
			return step, apperrors.NewNotFoundError(fmt.Sprintf("section %q is not in the outline", sectionTitle), nil)
		}

		content := p.PaperData[sectionTitle]
		if appendTo && strings.TrimSpace(content.Markdown) != "" {
			content.Markdown = content.Markdown + "\n\n" + markdown
		} else {
			content.Markdown = markdown
		}
		if content.Citations == nil {
			content.Citations = []string{}
		}
		p.PaperData[sectionTitle] = content
		return step, nil
	})
}
