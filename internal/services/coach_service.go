// internal/services/coach_service.go
package services

import (
	"context"
	"fmt"

	"github.com/scholarforge/scholarforge/internal/models"
	"github.com/scholarforge/scholarforge/internal/utils"
)

// CoachApologyMessage is appended as the model turn when the model
// call fails, so the transcript always shows a reply.
const CoachApologyMessage = "Sorry, I encountered an error. Please try again."

// CoachService runs the guidance chat: an academic coach persona that
// advises without writing content for the user.
type CoachService struct {
	Projects *ProjectService
	LLM      Completer
}

func NewCoachService(projects *ProjectService, llm Completer) *CoachService {
	return &CoachService{
		Projects: projects,
		LLM:      llm,
	}
}

// StarterPrompts are suggested openers shown on an empty chat.
func (s *CoachService) StarterPrompts() []string {
	return []string{
		"Help me start my introduction.",
		"What's a good structure for a literature review?",
		"I'm feeling stuck, can you give me some motivation?",
		"How can I improve my thesis statement?",
	}
}

func coachSystemInstruction(topic *models.ResearchTopic) string {
	subject := "student working on a research project."
	if topic != nil {
		subject = fmt.Sprintf("student working on a thesis titled %q.", topic.Title)
	}
	return fmt.Sprintf("You are an expert academic guidance coach. The user is a %s Your goal is to be encouraging, ask clarifying questions, and provide helpful, actionable advice. Do not write content for the user, but guide them. Keep responses concise and friendly. Format your response using markdown.", subject)
}

func buildCoachMessages(project *models.Project, input string) []ChatCompletionMessage {
	messages := make([]ChatCompletionMessage, 0, len(project.ChatHistory)+2)
	messages = append(messages, ChatCompletionMessage{
		Role:    RoleSystem,
		Content: coachSystemInstruction(project.Topic),
	})
	for _, msg := range project.ChatHistory {
		role := RoleUser
		if msg.Role == models.ChatRoleModel {
			role = RoleAssistant
		}
		messages = append(messages, ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, ChatCompletionMessage{Role: RoleUser, Content: input})
	return messages
}

// Chat appends the user message, asks the coach for a reply and stores
// both turns. A failed model call still records the user message, with
// an apology as the reply, and does not surface the error.
func (s *CoachService) Chat(ctx context.Context, userID, input string) (*ProjectState, error) {
	project, err := s.Projects.GetProject(userID)
	if err != nil {
		return nil, err
	}

	reply := CoachApologyMessage
	resp, err := s.LLM.CreateChatCompletion(ctx, ChatCompletionRequest{
		Messages:    buildCoachMessages(project, input),
		Temperature: 0.7,
	})
	if err != nil {
		utils.GetLogger().Error("Coach chat failed", map[string]interface{}{"user_id": userID, "err": err})
	} else if len(resp.Choices) > 0 {
		reply = resp.Choices[0].Message.Content
	}

	return s.RecordExchange(userID, input, reply)
}

// RecordExchange persists a user/model turn pair. The plain Chat path
// ends here, and the streaming channel calls it once the full reply has
// been assembled.
func (s *CoachService) RecordExchange(userID, input, reply string) (*ProjectState, error) {
	return s.Projects.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		p.Apply(models.ProjectPatch{ChatHistory: append(p.ChatHistory,
			models.ChatMessage{Role: models.ChatRoleUser, Content: input},
			models.ChatMessage{Role: models.ChatRoleModel, Content: reply},
		)})
		return step, nil
	})
}

// BuildStreamRequest prepares the request for a streamed coach reply.
func (s *CoachService) BuildStreamRequest(userID, input string) (ChatCompletionRequest, error) {
	project, err := s.Projects.GetProject(userID)
	if err != nil {
		return ChatCompletionRequest{}, err
	}
	return ChatCompletionRequest{
		Messages:    buildCoachMessages(project, input),
		Temperature: 0.7,
	}, nil
}
