package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/scholarforge/scholarforge/internal/errors"
	"github.com/scholarforge/scholarforge/internal/models"
)

func TestGenerateTopics(t *testing.T) {
	ps := newTestProjectService(t)
	fake := &fakeCompleter{
		structuredJSON: `[
			{"title": "Federated anomaly detection", "description": "Detecting anomalies without central data."},
			{"title": "", "description": "model returned a blank title"},
			{"title": "Green scheduling", "description": "Carbon-aware batch scheduling."}
		]`,
	}
	svc := NewTopicService(ps, fake)

	_, err := ps.Start("user1")
	require.NoError(t, err)
	_, err = ps.SubmitProfile("user1", models.UserProfile{Name: "Ada", Stream: "CS"})
	require.NoError(t, err)

	state, err := svc.GenerateTopics(context.Background(), "user1")
	require.NoError(t, err)

	require.Len(t, state.Project.SuggestedTopics, 2, "blank titles are dropped")
	assert.Equal(t, "Federated anomaly detection", state.Project.SuggestedTopics[0].Title)
	assert.Equal(t, models.StepTopic, state.Step, "topic generation stays on the topic step")
	assert.Contains(t, fake.lastPrompt, "Stream/Major: CS")
}

func TestGenerateTopicsRequiresProfile(t *testing.T) {
	ps := newTestProjectService(t)
	fake := &fakeCompleter{structuredJSON: `[]`}
	svc := NewTopicService(ps, fake)

	_, err := svc.GenerateTopics(context.Background(), "user1")
	assert.ErrorIs(t, err, ErrProfileRequired)
	assert.Zero(t, fake.structuredCalls, "no LLM call without a profile")
}

func TestGenerateTopicsPropagatesLLMError(t *testing.T) {
	ps := newTestProjectService(t)
	boom := errors.New("provider down")
	svc := NewTopicService(ps, &fakeCompleter{structuredErr: boom})

	_, err := ps.Start("user1")
	require.NoError(t, err)
	_, err = ps.SubmitProfile("user1", models.UserProfile{Name: "Ada", Stream: "CS"})
	require.NoError(t, err)

	_, err = svc.GenerateTopics(context.Background(), "user1")
	assert.ErrorIs(t, err, boom)

	state, err := ps.GetState("user1")
	require.NoError(t, err)
	assert.Empty(t, state.Project.SuggestedTopics, "failed generation stores nothing")
}

func TestGenerateTopicsReplacesPrevious(t *testing.T) {
	ps := newTestProjectService(t)
	fake := &fakeCompleter{structuredJSON: `[{"title": "Second run", "description": "d"}]`}
	svc := NewTopicService(ps, fake)

	_, err := ps.Start("user1")
	require.NoError(t, err)
	_, err = ps.SubmitProfile("user1", models.UserProfile{Name: "Ada", Stream: "CS"})
	require.NoError(t, err)

	_, err = ps.Mutate("user1", func(p *models.Project, step models.Step) (models.Step, error) {
		p.SuggestedTopics = []models.ResearchTopic{{Title: "First run"}}
		return step, nil
	})
	require.NoError(t, err)

	state, err := svc.GenerateTopics(context.Background(), "user1")
	require.NoError(t, err)

	require.Len(t, state.Project.SuggestedTopics, 1)
	assert.Equal(t, "Second run", state.Project.SuggestedTopics[0].Title)
}

// blockingCompleter parks the structured call until released, so tests
// can observe an in-flight generation.
type blockingCompleter struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingCompleter) CreateChatCompletion(ctx context.Context, request ChatCompletionRequest) (ChatCompletionResponse, error) {
	return ChatCompletionResponse{}, errors.New("not used")
}

func (b *blockingCompleter) CreateStructuredCompletion(ctx context.Context, prompt string, systemPrompt string, outputSchema interface{}) error {
	close(b.started)
	<-b.release
	return json.Unmarshal([]byte(`[{"title": "T", "description": "d"}]`), outputSchema)
}

func TestGenerateTopicsRejectsConcurrentRequests(t *testing.T) {
	ps := newTestProjectService(t)
	blocker := &blockingCompleter{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewTopicService(ps, blocker)

	_, err := ps.Start("user1")
	require.NoError(t, err)
	_, err = ps.SubmitProfile("user1", models.UserProfile{Name: "Ada", Stream: "CS"})
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.GenerateTopics(context.Background(), "user1")
		firstDone <- err
	}()

	<-blocker.started
	_, err = svc.GenerateTopics(context.Background(), "user1")
	assert.True(t, apperrors.IsConflictError(err))

	close(blocker.release)
	require.NoError(t, <-firstDone)

	// the guard clears once the first call finishes
	project, err := ps.GetProject("user1")
	require.NoError(t, err)
	assert.Len(t, project.SuggestedTopics, 1)
}
