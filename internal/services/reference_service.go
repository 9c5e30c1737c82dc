// internal/services/reference_service.go
package services

import (
	"context"
	"fmt"

	apperrors "github.com/scholarforge/scholarforge/internal/errors"
	"github.com/scholarforge/scholarforge/internal/models"
	"github.com/scholarforge/scholarforge/internal/utils"
)

// ReferenceService discovers and vets academic sources for the chosen
// topic. Both operations run search-then-structure: a grounded search
// pass first, then a structuring pass over its output.
type ReferenceService struct {
	Projects *ProjectService
	LLM      Completer
}

func NewReferenceService(projects *ProjectService, llm Completer) *ReferenceService {
	return &ReferenceService{
		Projects: projects,
		LLM:      llm,
	}
}

// searchToolParams asks providers that support grounding to use web
// search for the first pass.
func searchToolParams() map[string]interface{} {
	return map[string]interface{}{
		"tools": []map[string]interface{}{
			{"googleSearch": map[string]interface{}{}},
		},
	}
}

func (s *ReferenceService) search(ctx context.Context, prompt string) (string, error) {
	resp, err := s.LLM.CreateChatCompletion(ctx, ChatCompletionRequest{
		Messages: []ChatCompletionMessage{
			{Role: RoleUser, Content: prompt},
		},
		Temperature: 0.5,
		ExtraParams: searchToolParams(),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// FindReferences gathers sources in three categories. Discovery is
// best-effort: any failure yields empty categories rather than an
// error, the user can simply retry.
func (s *ReferenceService) FindReferences(ctx context.Context, userID string) (*models.ReferenceResult, error) {
	project, err := s.Projects.GetProject(userID)
	if err != nil {
		return nil, err
	}
	if project.Topic == nil {
		return nil, apperrors.NewValidationError("a topic must be selected before finding references", ErrTopicRequired)
	}

	empty := &models.ReferenceResult{
		ResearchPapers:      []models.Reference{},
		ArticlesAndNews:     []models.Reference{},
		CoursesAndResources: []models.Reference{},
	}

	searchPrompt := fmt.Sprintf(`Find relevant academic sources for a research paper on the topic: %q.
Categorize the results into three JSON arrays: 'researchPapers', 'articlesAndNews', and 'coursesAndResources'.
For each item, provide a 'title', a brief 'description', and a 'link'.
Prioritize sources from well-known academic databases (like IEEE, ACM, Google Scholar, arXiv) for 'researchPapers'.`,
		project.Topic.Title)

	searchResults, err := s.search(ctx, searchPrompt)
	if err != nil {
		utils.GetLogger().Warn("Reference search failed", map[string]interface{}{"user_id": userID, "err": err})
		return empty, nil
	}

	processPrompt := fmt.Sprintf(`Based on the provided search results, please structure the information into the requested JSON format.
Search Results:
%s

Required JSON structure:
{
  "researchPapers": [{ "title": "...", "description": "...", "link": "..." }],
  "articlesAndNews": [{ "title": "...", "description": "...", "link": "..." }],
  "coursesAndResources": [{ "title": "...", "description": "...", "link": "..." }]
}
Create a description for each item. Ensure the links are valid URLs from the search results.
Make sure all strings are properly escaped and the JSON is valid.`, searchResults)

	var result models.ReferenceResult
	if err := s.LLM.CreateStructuredCompletion(ctx, processPrompt, "", &result); err != nil {
		utils.GetLogger().Warn("Reference structuring failed", map[string]interface{}{"user_id": userID, "err": err})
		return empty, nil
	}

	if result.ResearchPapers == nil {
		result.ResearchPapers = []models.Reference{}
	}
	if result.ArticlesAndNews == nil {
		result.ArticlesAndNews = []models.Reference{}
	}
	if result.CoursesAndResources == nil {
		result.CoursesAndResources = []models.Reference{}
	}

	return &result, nil
}

// VetSource assesses the academic credibility of one reference. Unlike
// discovery this propagates failures: a vetting verdict that silently
// degraded would be worse than none.
func (s *ReferenceService) VetSource(ctx context.Context, ref models.Reference) (*models.SourceVettingInfo, error) {
	if ref.Link == "" {
		return nil, apperrors.NewValidationError("a source link is required for vetting", nil)
	}

	searchPrompt := fmt.Sprintf(`Analyze the academic credibility of the source found at this link: %s.
The source is titled: %q.
Gather information on its peer review status, author affiliation, and publication date to assess its credibility for academic research.`,
		ref.Link, ref.Title)

	searchResults, err := s.search(ctx, searchPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to research source credibility: %w", err)
	}

	processPrompt := fmt.Sprintf(`Based on the provided search results and analysis, please structure the information into the requested JSON format.
Search Context:
%s

Provide the following information in a JSON object:
- "peerReviewStatus": (e.g., "Peer-reviewed", "Pre-print", "Not peer-reviewed", "Uncertain").
- "authorAffiliation": (e.g., "Well-known university", "Respected research lab", "Unknown", "Commercial entity").
- "publicationRecency": (e.g., "Recent (last 2 years)", "Relatively recent (2-5 years)", "Older (5+ years)").
- "credibilitySummary": A brief, one-sentence summary of the source's likely credibility for academic research.`,
		searchResults)

	var info models.SourceVettingInfo
	if err := s.LLM.CreateStructuredCompletion(ctx, processPrompt, "", &info); err != nil {
		return nil, fmt.Errorf("failed to structure vetting result: %w", err)
	}

	return &info, nil
}
