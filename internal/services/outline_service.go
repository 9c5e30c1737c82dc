// internal/services/outline_service.go
package services

import (
	"context"
	"fmt"

	apperrors "github.com/scholarforge/scholarforge/internal/errors"
	"github.com/scholarforge/scholarforge/internal/models"
	"github.com/scholarforge/scholarforge/internal/utils"
)

// OutlineService builds the chapter outline for a validated topic,
// with a fixed default structure as the fallback.
type OutlineService struct {
	Projects *ProjectService
	LLM      Completer
}

func NewOutlineService(projects *ProjectService, llm Completer) *OutlineService {
	return &OutlineService{
		Projects: projects,
		LLM:      llm,
	}
}

// DefaultOutlineSections returns the standard thesis structure used
// when generation fails or comes back empty.
func DefaultOutlineSections() []models.OutlineSection {
	return []models.OutlineSection{
		{Title: "Introduction", Description: "Background, problem statement, research questions, and significance."},
		{Title: "Literature Review", Description: "Critical analysis of existing research relevant to the topic."},
		{Title: "Methodology", Description: "Description of the research design, data collection, and analysis methods."},
		{Title: "Results", Description: "Presentation of the findings from the research."},
		{Title: "Discussion", Description: "Interpretation of results, implications, and limitations."},
		{Title: "Conclusion", Description: "Summary of findings and suggestions for future research."},
		{Title: "References", Description: "List of all cited sources."},
		{Title: "Appendices", Description: "Supplementary materials (optional)."},
	}
}

func (s *OutlineService) generate(ctx context.Context, topic models.ResearchTopic, profile models.UserProfile) ([]models.OutlineSection, error) {
	prompt := fmt.Sprintf(`Generate a detailed, chapter-by-chapter research paper outline for a %s-level thesis.

Topic Title: %q
Topic Description: %q

The outline should include major chapters (e.g., Introduction, Literature Review, Methodology, etc.).
For each chapter, provide:
1. A 'title'.
2. A brief 'description' of what the chapter will cover.
3. An array of 'subsections', where each subsection has its own 'title' and 'description'.

Return the response as a JSON array of chapter objects.`,
		profile.AcademicLevel, topic.Title, topic.Description)

	var outline []models.OutlineSection
	if err := s.LLM.CreateStructuredCompletion(ctx, prompt, "", &outline); err != nil {
		return nil, fmt.Errorf("failed to generate outline: %w", err)
	}

	valid := outline[:0]
	for _, section := range outline {
		if section.Title != "" {
			valid = append(valid, section)
		}
	}

	return valid, nil
}

// SubmitValidation records the topic validation answers, generates the
// outline and advances to the outline step. Generation failure falls
// back to the default structure, the flow still advances.
func (s *OutlineService) SubmitValidation(ctx context.Context, userID string, answers models.TopicValidationAnswers) (*ProjectState, error) {
	if !answers.IsComplete() {
		return nil, apperrors.NewValidationError("all three validation answers are required", nil)
	}

	project, err := s.Projects.GetProject(userID)
	if err != nil {
		return nil, err
	}
	if project.Topic == nil {
		return nil, apperrors.NewValidationError("a topic must be selected before validation", ErrTopicRequired)
	}

	outline, err := s.generate(ctx, *project.Topic, project.UserProfile)
	if err != nil {
		utils.GetLogger().Warn("Outline generation failed, using default structure",
			map[string]interface{}{"user_id": userID, "err": err})
		outline = DefaultOutlineSections()
	}
	if len(outline) == 0 {
		outline = DefaultOutlineSections()
	}

	return s.Projects.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		if p.Topic == nil {
			return step, apperrors.NewValidationError("a topic must be selected before validation", ErrTopicRequired)
		}
		p.Apply(models.ProjectPatch{
			TopicValidation: &answers,
			Outline:         outline,
			PaperData:       map[string]models.SectionContent{},
		})
		return models.StepOutline, nil
	})
}

// Regenerate replaces the outline with a fresh generation. Unlike the
// validation flow, a failed generation leaves the project untouched.
func (s *OutlineService) Regenerate(ctx context.Context, userID string) (*ProjectState, error) {
	project, err := s.Projects.GetProject(userID)
	if err != nil {
		return nil, err
	}
	if project.Topic == nil {
		return nil, apperrors.NewValidationError("a topic must be selected before generating an outline", ErrTopicRequired)
	}

	outline, err := s.generate(ctx, *project.Topic, project.UserProfile)
	if err != nil {
		return nil, err
	}
	if len(outline) == 0 {
		outline = DefaultOutlineSections()
	}

	return s.Projects.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		p.Apply(models.ProjectPatch{Outline: outline})
		return step, nil
	})
}

// Confirm locks in the outline: every section is seeded with a stub
// draft and the wizard moves to the dashboard.
func (s *OutlineService) Confirm(userID string) (*ProjectState, error) {
	return s.Projects.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		if len(p.Outline) == 0 {
			return step, apperrors.NewValidationError("an outline is required before confirming", ErrOutlineRequired)
		}

		paperData := make(map[string]models.SectionContent, len(p.Outline))
		for _, section := range p.Outline {
			paperData[section.Title] = models.SectionContent{
				Markdown:  SectionStub(section),
				Citations: []string{},
			}
		}
		p.Apply(models.ProjectPatch{PaperData: paperData})

		return models.StepDashboard, nil
	})
}
