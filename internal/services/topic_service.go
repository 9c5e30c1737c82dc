// internal/services/topic_service.go
package services

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/scholarforge/scholarforge/internal/errors"
	"github.com/scholarforge/scholarforge/internal/models"
	"github.com/scholarforge/scholarforge/internal/utils"
)

// ErrGenerationInFlight rejects a second generation request for the
// same user while one is still running.
var ErrGenerationInFlight = apperrors.NewConflictError("topic generation is already in progress", nil)

// TopicService generates research topic suggestions from the user's
// profile and records the chosen topic.
type TopicService struct {
	Projects *ProjectService
	LLM      Completer

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewTopicService(projects *ProjectService, llm Completer) *TopicService {
	return &TopicService{
		Projects: projects,
		LLM:      llm,
		inFlight: make(map[string]bool),
	}
}

// beginGeneration marks a user's generation as running; false means one
// is already in flight.
func (s *TopicService) beginGeneration(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[userID] {
		return false
	}
	s.inFlight[userID] = true
	return true
}

func (s *TopicService) endGeneration(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, userID)
}

// GenerateTopics asks the model for 3-5 topic suggestions and stores
// them on the project. Previously stored suggestions are replaced.
func (s *TopicService) GenerateTopics(ctx context.Context, userID string) (*ProjectState, error) {
	if !s.beginGeneration(userID) {
		return nil, ErrGenerationInFlight
	}
	defer s.endGeneration(userID)

	project, err := s.Projects.GetProject(userID)
	if err != nil {
		return nil, err
	}

	if !project.UserProfile.IsComplete() {
		return nil, apperrors.NewValidationError("profile must be completed before generating topics", ErrProfileRequired)
	}

	topics, err := s.suggestTopics(ctx, project.UserProfile)
	if err != nil {
		return nil, err
	}
	if topics == nil {
		topics = []models.ResearchTopic{}
	}

	return s.Projects.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		p.Apply(models.ProjectPatch{SuggestedTopics: topics})
		return step, nil
	})
}

func (s *TopicService) suggestTopics(ctx context.Context, profile models.UserProfile) ([]models.ResearchTopic, error) {
	prompt := fmt.Sprintf(`Based on this user profile, generate 3-5 innovative and specific research topics for a thesis.
User Profile:
- Academic Level: %s
- Degree Name: %s
- Stream/Major: %s
- Specific Interests: %s
- Passionate About: %s

The topics should be suitable for their academic level and field. Each topic must have a "title" and a "description" (2-3 sentences).
Return the response as a JSON array of objects.`,
		profile.AcademicLevel, profile.DegreeName, profile.Stream,
		profile.SpecificTopic, profile.ExcitingTopics)

	var topics []models.ResearchTopic
	if err := s.LLM.CreateStructuredCompletion(ctx, prompt, "", &topics); err != nil {
		utils.GetLogger().Error("Topic suggestion failed", map[string]interface{}{"err": err})
		return nil, fmt.Errorf("failed to generate topic suggestions: %w", err)
	}

	// drop entries the model returned without a title
	valid := topics[:0]
	for _, t := range topics {
		if t.Title != "" {
			valid = append(valid, t)
		}
	}

	return valid, nil
}

// SelectTopic stores the chosen topic and advances to validation.
func (s *TopicService) SelectTopic(userID string, topic models.ResearchTopic) (*ProjectState, error) {
	return s.Projects.SelectTopic(userID, topic)
}
