package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarforge/scholarforge/internal/models"
)

func TestCoachChatAppendsBothTurns(t *testing.T) {
	ps := newTestProjectService(t)
	fake := &fakeCompleter{chatReply: "Start with your research question."}
	coach := NewCoachService(ps, fake)
	seedProject(t, ps, "user1")

	state, err := coach.Chat(context.Background(), "user1", "Where do I start?")
	require.NoError(t, err)

	require.Len(t, state.Project.ChatHistory, 2)
	assert.Equal(t, models.ChatRoleUser, state.Project.ChatHistory[0].Role)
	assert.Equal(t, "Where do I start?", state.Project.ChatHistory[0].Content)
	assert.Equal(t, models.ChatRoleModel, state.Project.ChatHistory[1].Role)
	assert.Equal(t, "Start with your research question.", state.Project.ChatHistory[1].Content)

	// system instruction carries the thesis title
	assert.Contains(t, fake.lastRequest.Messages[0].Content, "Adaptive load shedding")
}

func TestCoachChatErrorRecordsApology(t *testing.T) {
	ps := newTestProjectService(t)
	coach := NewCoachService(ps, &fakeCompleter{chatErr: errors.New("provider down")})
	seedProject(t, ps, "user1")

	state, err := coach.Chat(context.Background(), "user1", "Help?")
	require.NoError(t, err, "model failure must not surface to the caller")

	require.Len(t, state.Project.ChatHistory, 2)
	assert.Equal(t, CoachApologyMessage, state.Project.ChatHistory[1].Content)
}

func TestCoachChatCarriesHistory(t *testing.T) {
	ps := newTestProjectService(t)
	fake := &fakeCompleter{chatReply: "Second answer."}
	coach := NewCoachService(ps, fake)
	seedProject(t, ps, "user1")

	_, err := coach.Chat(context.Background(), "user1", "First question")
	require.NoError(t, err)
	state, err := coach.Chat(context.Background(), "user1", "Second question")
	require.NoError(t, err)

	assert.Len(t, state.Project.ChatHistory, 4)

	// system + 2 history turns + new input
	require.Len(t, fake.lastRequest.Messages, 4)
	assert.Equal(t, RoleAssistant, fake.lastRequest.Messages[2].Role)
	assert.Equal(t, "Second question", fake.lastRequest.Messages[3].Content)
}

func TestStarterPrompts(t *testing.T) {
	coach := NewCoachService(newTestProjectService(t), &fakeCompleter{})
	assert.Len(t, coach.StarterPrompts(), 4)
}

func TestBuildStreamRequest(t *testing.T) {
	ps := newTestProjectService(t)
	coach := NewCoachService(ps, &fakeCompleter{})
	seedProject(t, ps, "user1")

	request, err := coach.BuildStreamRequest("user1", "What next?")
	require.NoError(t, err)

	require.NotEmpty(t, request.Messages)
	assert.Equal(t, RoleSystem, request.Messages[0].Role)
	assert.Equal(t, "What next?", request.Messages[len(request.Messages)-1].Content)
}

func TestCoachWithoutTopicUsesGenericPersona(t *testing.T) {
	ps := newTestProjectService(t)
	fake := &fakeCompleter{chatReply: "ok"}
	coach := NewCoachService(ps, fake)

	_, err := ps.Start("user1")
	require.NoError(t, err)

	_, err = coach.Chat(context.Background(), "user1", "Hello")
	require.NoError(t, err)
	assert.Contains(t, fake.lastRequest.Messages[0].Content, "research project")
	assert.NotContains(t, fake.lastRequest.Messages[0].Content, "thesis titled")
}
