package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/scholarforge/scholarforge/internal/models"
)

// fakeCompleter is a test double for the Completer interface. Chat
// replies come from chatReply/chatErr; structured replies unmarshal
// structuredJSON into the output schema.
type fakeCompleter struct {
	chatReply      string
	chatErr        error
	structuredJSON string
	structuredErr  error

	chatCalls       int
	structuredCalls int
	lastPrompt      string
	lastSystem      string
	lastRequest     ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, request ChatCompletionRequest) (ChatCompletionResponse, error) {
	f.chatCalls++
	f.lastRequest = request
	if f.chatErr != nil {
		return ChatCompletionResponse{}, f.chatErr
	}
	return ChatCompletionResponse{
		Choices: []ChatCompletionChoice{
			{Message: ChatCompletionMessage{Role: RoleAssistant, Content: f.chatReply}},
		},
	}, nil
}

func (f *fakeCompleter) CreateStructuredCompletion(ctx context.Context, prompt string, systemPrompt string, outputSchema interface{}) error {
	f.structuredCalls++
	f.lastPrompt = prompt
	f.lastSystem = systemPrompt
	if f.structuredErr != nil {
		return f.structuredErr
	}
	return json.Unmarshal([]byte(f.structuredJSON), outputSchema)
}

func newTestProjectService(t *testing.T) *ProjectService {
	t.Helper()
	return NewProjectService(t.TempDir())
}

// seedProject walks a user through profile and topic selection so
// tests can start from a mid-wizard state.
func seedProject(t *testing.T, ps *ProjectService, userID string) {
	t.Helper()

	if _, err := ps.Start(userID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ps.SubmitProfile(userID, models.UserProfile{
		Name:          "Ada",
		AcademicLevel: models.LevelMasters,
		DegreeName:    "MSc",
		Stream:        "Computer Science",
	}); err != nil {
		t.Fatalf("submit profile: %v", err)
	}
	if _, err := ps.SelectTopic(userID, models.ResearchTopic{
		Title:       "Adaptive load shedding",
		Description: "Shedding strategies for overloaded stream processors.",
	}); err != nil {
		t.Fatalf("select topic: %v", err)
	}
}

// seedOutline additionally installs and confirms an outline.
func seedOutline(t *testing.T, ps *ProjectService, outline *OutlineService, userID string) {
	t.Helper()

	seedProject(t, ps, userID)
	if _, err := outline.SubmitValidation(context.Background(), userID, models.TopicValidationAnswers{
		ResearchQuestion: "How should overload be shed?",
		KeyResearchers:   "Stonebraker",
		Novelty:          "Adaptive policies",
	}); err != nil {
		t.Fatalf("submit validation: %v", err)
	}
	if _, err := outline.Confirm(userID); err != nil {
		t.Fatalf("confirm outline: %v", err)
	}
}
