package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarforge/scholarforge/internal/models"
)

func newPaperFixture(t *testing.T, fake *fakeCompleter) (*ProjectService, *PaperService) {
	t.Helper()
	ps := newTestProjectService(t)
	outline := NewOutlineService(ps, &fakeCompleter{
		structuredJSON: `[
			{"title": "Introduction", "description": "Opening chapter.", "subsections": [
				{"title": "Background", "description": "Context for the study."}
			]},
			{"title": "Conclusion", "description": "Closing chapter."}
		]`,
	})
	seedOutline(t, ps, outline, "user1")
	return ps, NewPaperService(ps, fake)
}

func TestSaveSection(t *testing.T) {
	_, paper := newPaperFixture(t, &fakeCompleter{})

	state, err := paper.SaveSection("user1", "Introduction", models.SectionContent{
		Markdown: "My own draft.",
	})
	require.NoError(t, err)

	content := state.Project.PaperData["Introduction"]
	assert.Equal(t, "My own draft.", content.Markdown)
	assert.NotNil(t, content.Citations, "nil citations are normalized")
}

func TestSaveSectionUnknownTitle(t *testing.T) {
	_, paper := newPaperFixture(t, &fakeCompleter{})

	_, err := paper.SaveSection("user1", "Appendix Z", models.SectionContent{Markdown: "x"})
	assert.Error(t, err)
}

func TestGenerateSectionStoresDraft(t *testing.T) {
	fake := &fakeCompleter{chatReply: "## Introduction\n\nGenerated prose."}
	_, paper := newPaperFixture(t, fake)

	state, err := paper.GenerateSection(context.Background(), "user1", "Introduction")
	require.NoError(t, err)

	assert.Equal(t, "## Introduction\n\nGenerated prose.", state.Project.PaperData["Introduction"].Markdown)
	assert.Equal(t, 1, fake.chatCalls)

	// the seeded stub rides along as context
	prompt := fake.lastRequest.Messages[len(fake.lastRequest.Messages)-1].Content
	assert.Contains(t, prompt, "Existing Content to Build Upon:")
	assert.Contains(t, prompt, "Adaptive load shedding")
}

func TestGenerateSectionFeedbackMode(t *testing.T) {
	fake := &fakeCompleter{chatReply: "Revised draft."}
	ps, paper := newPaperFixture(t, fake)

	_, err := ps.Mutate("user1", func(p *models.Project, step models.Step) (models.Step, error) {
		p.PaperData["Introduction"] = models.SectionContent{
			Markdown: "Old draft.\n\nUser Feedback: make it shorter",
		}
		return step, nil
	})
	require.NoError(t, err)

	_, err = paper.GenerateSection(context.Background(), "user1", "Introduction")
	require.NoError(t, err)

	prompt := fake.lastRequest.Messages[len(fake.lastRequest.Messages)-1].Content
	assert.Contains(t, prompt, "Previous Content and User Instructions:")
	assert.Contains(t, prompt, "address all the user feedback")
}

func TestGenerateSubsectionAppends(t *testing.T) {
	fake := &fakeCompleter{chatReply: "Background paragraphs."}
	ps, paper := newPaperFixture(t, fake)

	_, err := ps.Mutate("user1", func(p *models.Project, step models.Step) (models.Step, error) {
		p.PaperData["Introduction"] = models.SectionContent{Markdown: "Existing intro."}
		return step, nil
	})
	require.NoError(t, err)

	state, err := paper.GenerateSubsection(context.Background(), "user1", "Introduction", "Background")
	require.NoError(t, err)

	assert.Equal(t, "Existing intro.\n\nBackground paragraphs.",
		state.Project.PaperData["Introduction"].Markdown)
}

func TestGenerateSubsectionUnknown(t *testing.T) {
	_, paper := newPaperFixture(t, &fakeCompleter{chatReply: "x"})

	_, err := paper.GenerateSubsection(context.Background(), "user1", "Introduction", "Nope")
	assert.Error(t, err)
}

func TestEnhanceSection(t *testing.T) {
	fake := &fakeCompleter{chatReply: "Expanded draft."}
	ps, paper := newPaperFixture(t, fake)

	_, err := ps.Mutate("user1", func(p *models.Project, step models.Step) (models.Step, error) {
		p.PaperData["Introduction"] = models.SectionContent{Markdown: "Short draft."}
		return step, nil
	})
	require.NoError(t, err)

	state, err := paper.EnhanceSection(context.Background(), "user1", "Introduction", EnhanceExpand)
	require.NoError(t, err)
	assert.Equal(t, "Expanded draft.", state.Project.PaperData["Introduction"].Markdown)

	_, err = paper.EnhanceSection(context.Background(), "user1", "Introduction", "sparkle")
	assert.Error(t, err, "unknown enhancement type is rejected")
}

func TestEnhanceSectionRequiresContent(t *testing.T) {
	ps, paper := newPaperFixture(t, &fakeCompleter{chatReply: "x"})

	_, err := ps.Mutate("user1", func(p *models.Project, step models.Step) (models.Step, error) {
		p.PaperData["Introduction"] = models.SectionContent{Markdown: "   "}
		return step, nil
	})
	require.NoError(t, err)

	_, err = paper.EnhanceSection(context.Background(), "user1", "Introduction", EnhanceImprove)
	assert.Error(t, err)
}

func TestAnalyzeSection(t *testing.T) {
	fake := &fakeCompleter{chatReply: "Solid structure, weak transitions."}
	ps, paper := newPaperFixture(t, fake)

	_, err := ps.Mutate("user1", func(p *models.Project, step models.Step) (models.Step, error) {
		p.PaperData["Introduction"] = models.SectionContent{Markdown: "A reasonable draft."}
		return step, nil
	})
	require.NoError(t, err)

	feedback, err := paper.AnalyzeSection(context.Background(), "user1", "Introduction", "structural")
	require.NoError(t, err)
	assert.Equal(t, "Solid structure, weak transitions.", feedback)

	// the canned lens replaces the id in the prompt
	prompt := fake.lastRequest.Messages[len(fake.lastRequest.Messages)-1].Content
	assert.NotContains(t, prompt, `User's Request: "structural"`)

	// analysis never mutates the draft
	state, err := ps.GetState("user1")
	require.NoError(t, err)
	assert.Equal(t, "A reasonable draft.", state.Project.PaperData["Introduction"].Markdown)
}

func TestAnalysisKinds(t *testing.T) {
	kinds := AnalysisKinds()
	require.Len(t, kinds, 5)

	ids := make([]string, 0, len(kinds))
	for _, k := range kinds {
		ids = append(ids, k.ID)
		assert.NotEmpty(t, k.Title)
		assert.NotEmpty(t, k.Prompt)
	}
	assert.ElementsMatch(t, []string{"structural", "methodology", "writing", "innovation", "ethics"}, ids)
}

func TestGenerateSectionPropagatesLLMError(t *testing.T) {
	boom := errors.New("provider down")
	ps, paper := newPaperFixture(t, &fakeCompleter{chatErr: boom})

	_, err := paper.GenerateSection(context.Background(), "user1", "Introduction")
	assert.ErrorIs(t, err, boom)

	state, err := ps.GetState("user1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(state.Project.PaperData["Introduction"].Markdown, "## Introduction"),
		"failed generation leaves the stub alone")
}
