// internal/services/resource_service.go
package services

import (
	"context"
	"fmt"

	apperrors "github.com/scholarforge/scholarforge/internal/errors"
	"github.com/scholarforge/scholarforge/internal/models"
)

// ResourceService finds technical material for the research: public
// datasets, code repositories and tooling.
type ResourceService struct {
	Projects *ProjectService
	LLM      Completer
}

func NewResourceService(projects *ProjectService, llm Completer) *ResourceService {
	return &ResourceService{
		Projects: projects,
		LLM:      llm,
	}
}

// FindResources runs the search-then-structure flow for technical
// resources. Failures propagate; the resource hub shows them directly.
func (s *ResourceService) FindResources(ctx context.Context, userID string) (*models.ResourceResult, error) {
	project, err := s.Projects.GetProject(userID)
	if err != nil {
		return nil, err
	}
	if project.Topic == nil {
		return nil, apperrors.NewValidationError("a topic must be selected before finding resources", ErrTopicRequired)
	}

	searchPrompt := fmt.Sprintf(`For a %s student in %s researching %q, find relevant technical resources.
Use web search to find public datasets, open-source code repositories (like on GitHub), and specific tools or software libraries.

Categorize the results into three JSON arrays: 'datasets', 'codeRepositories', and 'toolsAndLibraries'.
For each item, provide a 'title', a brief 'description' of its relevance, and a direct 'link'.`,
		project.UserProfile.AcademicLevel, project.UserProfile.Stream, project.Topic.Title)

	resp, err := s.LLM.CreateChatCompletion(ctx, ChatCompletionRequest{
		Messages: []ChatCompletionMessage{
			{Role: RoleUser, Content: searchPrompt},
		},
		Temperature: 0.5,
		ExtraParams: searchToolParams(),
	})
	if err != nil {
		return nil, fmt.Errorf("resource search failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	processPrompt := fmt.Sprintf(`Based on the provided search results, structure the information into the requested JSON format.
Search Results:
%s

Required JSON structure:
{
  "datasets": [{ "title": "...", "description": "...", "link": "..." }],
  "codeRepositories": [{ "title": "...", "description": "...", "link": "..." }],
  "toolsAndLibraries": [{ "title": "...", "description": "...", "link": "..." }]
}
Extract relevant items from the search results and generate a title, description, and link for each.`,
		resp.Choices[0].Message.Content)

	var result models.ResourceResult
	if err := s.LLM.CreateStructuredCompletion(ctx, processPrompt, "", &result); err != nil {
		return nil, fmt.Errorf("failed to structure resource results: %w", err)
	}

	if result.Datasets == nil {
		result.Datasets = []models.ResourceItem{}
	}
	if result.CodeRepositories == nil {
		result.CodeRepositories = []models.ResourceItem{}
	}
	if result.ToolsAndLibraries == nil {
		result.ToolsAndLibraries = []models.ResourceItem{}
	}

	return &result, nil
}
