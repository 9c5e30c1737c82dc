package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarforge/scholarforge/internal/models"
)

func TestGetStateFreshUser(t *testing.T) {
	ps := newTestProjectService(t)

	state, err := ps.GetState("user1")
	require.NoError(t, err)

	assert.Equal(t, models.StepLanding, state.Step)
	assert.Equal(t, 0, state.Progress)
	assert.Nil(t, state.Project.Topic)
	assert.NotNil(t, state.Project.PaperData)
}

func TestGetStateRequiresUserID(t *testing.T) {
	ps := newTestProjectService(t)

	_, err := ps.GetState("")
	assert.Error(t, err)
}

func TestStartAdvancesToProfile(t *testing.T) {
	ps := newTestProjectService(t)

	state, err := ps.Start("user1")
	require.NoError(t, err)
	assert.Equal(t, models.StepProfile, state.Step)
}

func TestSubmitProfileIncomplete(t *testing.T) {
	ps := newTestProjectService(t)

	_, err := ps.SubmitProfile("user1", models.UserProfile{Name: "Ada"})
	assert.Error(t, err)
}

func TestSubmitProfileResetsDownstream(t *testing.T) {
	ps := newTestProjectService(t)
	seedProject(t, ps, "user1")

	// park some downstream state
	_, err := ps.Mutate("user1", func(p *models.Project, step models.Step) (models.Step, error) {
		p.SuggestedTopics = []models.ResearchTopic{{Title: "Old suggestion"}}
		p.Outline = []models.OutlineSection{{Title: "Introduction"}}
		p.PaperData = map[string]models.SectionContent{"Introduction": {Markdown: "draft"}}
		return step, nil
	})
	require.NoError(t, err)

	state, err := ps.SubmitProfile("user1", models.UserProfile{
		Name:   "Ada",
		Stream: "Mathematics",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StepTopic, state.Step)
	assert.Nil(t, state.Project.Topic)
	assert.Empty(t, state.Project.SuggestedTopics)
	assert.Nil(t, state.Project.TopicValidation)
	assert.Empty(t, state.Project.Outline)
	assert.Empty(t, state.Project.PaperData)
}

func TestSelectTopicAdvancesToValidation(t *testing.T) {
	ps := newTestProjectService(t)
	_, err := ps.Start("user1")
	require.NoError(t, err)
	_, err = ps.SubmitProfile("user1", models.UserProfile{Name: "Ada", Stream: "CS"})
	require.NoError(t, err)

	state, err := ps.SelectTopic("user1", models.ResearchTopic{Title: "Topic A"})
	require.NoError(t, err)

	assert.Equal(t, models.StepTopicValidation, state.Step)
	require.NotNil(t, state.Project.Topic)
	assert.Equal(t, "Topic A", state.Project.Topic.Title)
}

func TestNavigate(t *testing.T) {
	ps := newTestProjectService(t)
	seedProject(t, ps, "user1")

	state, err := ps.Navigate("user1", models.StepDashboard)
	require.NoError(t, err)
	assert.Equal(t, models.StepDashboard, state.Step)

	// paper needs an outline
	_, err = ps.Navigate("user1", models.StepPaper)
	assert.ErrorIs(t, err, ErrStepNotAllowed)

	// unknown steps are rejected outright
	_, err = ps.Navigate("user1", models.Step("bogus"))
	assert.Error(t, err)
}

func TestStateSurvivesServiceRestart(t *testing.T) {
	dir := t.TempDir()
	ps := NewProjectService(dir)
	seedProject(t, ps, "user1")

	reopened := NewProjectService(dir)
	state, err := reopened.GetState("user1")
	require.NoError(t, err)

	assert.Equal(t, models.StepTopicValidation, state.Step)
	require.NotNil(t, state.Project.Topic)
	assert.Equal(t, "Adaptive load shedding", state.Project.Topic.Title)
}

func TestLoadRefusesUnknownSchemaVersion(t *testing.T) {
	ps := newTestProjectService(t)
	seedProject(t, ps, "user1")

	require.NoError(t, ps.Storage.SaveJSONFile("user1", "project.json", map[string]interface{}{
		"schema_version": 99,
		"project":        models.NewProject(),
	}))

	_, err := ps.GetState("user1")
	assert.ErrorIs(t, err, ErrSchemaVersion)
}

func TestGetStateReconcilesStaleStep(t *testing.T) {
	ps := newTestProjectService(t)
	_, err := ps.Start("user1")
	require.NoError(t, err)

	// a persisted step the project contents no longer justify
	require.NoError(t, ps.Storage.SaveJSONFile("user1", "step.json", map[string]interface{}{
		"schema_version": 1,
		"step":           "dashboard",
	}))

	state, err := ps.GetState("user1")
	require.NoError(t, err)
	assert.Equal(t, models.StepProfile, state.Step)

	// the correction is persisted, not just reported
	var envelope struct {
		Step models.Step `json:"step"`
	}
	require.NoError(t, ps.Storage.LoadJSONFile("user1", "step.json", &envelope))
	assert.Equal(t, models.StepProfile, envelope.Step)
}

func TestMutateErrorLeavesStateUntouched(t *testing.T) {
	ps := newTestProjectService(t)
	seedProject(t, ps, "user1")

	boom := errors.New("boom")
	_, err := ps.Mutate("user1", func(p *models.Project, step models.Step) (models.Step, error) {
		p.Topic = nil
		return step, boom
	})
	assert.ErrorIs(t, err, boom)

	state, err := ps.GetState("user1")
	require.NoError(t, err)
	assert.NotNil(t, state.Project.Topic, "failed mutation must not be persisted")
}

func TestListUsers(t *testing.T) {
	ps := newTestProjectService(t)
	seedProject(t, ps, "alice")
	seedProject(t, ps, "bob")

	users, err := ps.ListUsers()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)
}
