// internal/services/reference_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarforge/scholarforge/internal/models"
)

func TestFindReferences(t *testing.T) {
	projects := newTestProjectService(t)
	seedProject(t, projects, "ref-user")

	llm := &fakeCompleter{
		chatReply: "1. Paper on load shedding (https://arxiv.org/abs/0001)",
		structuredJSON: `{
			"researchPapers": [{"title": "P1", "description": "survey", "link": "https://arxiv.org/abs/0001"}],
			"articlesAndNews": [{"title": "A1", "description": "news", "link": "https://example.com/a1"}],
			"coursesAndResources": []
		}`,
	}
	svc := NewReferenceService(projects, llm)

	result, err := svc.FindReferences(context.Background(), "ref-user")
	require.NoError(t, err)
	require.Len(t, result.ResearchPapers, 1)
	assert.Equal(t, "P1", result.ResearchPapers[0].Title)
	require.Len(t, result.ArticlesAndNews, 1)
	assert.Empty(t, result.CoursesAndResources)
	assert.NotNil(t, result.CoursesAndResources)

	// Search pass runs grounded, structuring pass does not.
	assert.Equal(t, 1, llm.chatCalls)
	assert.Equal(t, 1, llm.structuredCalls)
	require.Len(t, llm.lastRequest.Messages, 1)
	assert.Contains(t, llm.lastRequest.Messages[0].Content, "Adaptive load shedding")
	assert.Contains(t, llm.lastRequest.ExtraParams, "tools")
	assert.Contains(t, llm.lastPrompt, "1. Paper on load shedding")
}

func TestFindReferencesRequiresTopic(t *testing.T) {
	projects := newTestProjectService(t)
	_, err := projects.Start("no-topic-user")
	require.NoError(t, err)

	llm := &fakeCompleter{}
	svc := NewReferenceService(projects, llm)

	_, err = svc.FindReferences(context.Background(), "no-topic-user")
	assert.ErrorIs(t, err, ErrTopicRequired)
	assert.Zero(t, llm.chatCalls)
}

func TestFindReferencesSearchFailureIsEmptyNotError(t *testing.T) {
	projects := newTestProjectService(t)
	seedProject(t, projects, "ref-user")

	llm := &fakeCompleter{chatErr: errors.New("search unavailable")}
	svc := NewReferenceService(projects, llm)

	result, err := svc.FindReferences(context.Background(), "ref-user")
	require.NoError(t, err)
	assert.Empty(t, result.ResearchPapers)
	assert.Empty(t, result.ArticlesAndNews)
	assert.Empty(t, result.CoursesAndResources)
	assert.Zero(t, llm.structuredCalls)
}

func TestFindReferencesStructuringFailureIsEmptyNotError(t *testing.T) {
	projects := newTestProjectService(t)
	seedProject(t, projects, "ref-user")

	llm := &fakeCompleter{
		chatReply:     "some raw results",
		structuredErr: errors.New("malformed JSON"),
	}
	svc := NewReferenceService(projects, llm)

	result, err := svc.FindReferences(context.Background(), "ref-user")
	require.NoError(t, err)
	assert.Empty(t, result.ResearchPapers)
	assert.Empty(t, result.ArticlesAndNews)
	assert.Empty(t, result.CoursesAndResources)
}

func TestFindReferencesNormalizesNilCategories(t *testing.T) {
	projects := newTestProjectService(t)
	seedProject(t, projects, "ref-user")

	llm := &fakeCompleter{
		chatReply:      "results",
		structuredJSON: `{"researchPapers": [{"title": "P1", "description": "d", "link": "https://x"}]}`,
	}
	svc := NewReferenceService(projects, llm)

	result, err := svc.FindReferences(context.Background(), "ref-user")
	require.NoError(t, err)
	assert.Len(t, result.ResearchPapers, 1)
	assert.NotNil(t, result.ArticlesAndNews)
	assert.NotNil(t, result.CoursesAndResources)
}

func TestVetSource(t *testing.T) {
	projects := newTestProjectService(t)
	llm := &fakeCompleter{
		chatReply: "peer-reviewed venue, recent publication",
		structuredJSON: `{
			"peerReviewStatus": "Peer-reviewed",
			"authorAffiliation": "Well-known university",
			"publicationRecency": "Recent (last 2 years)",
			"credibilitySummary": "Strong candidate for citation."
		}`,
	}
	svc := NewReferenceService(projects, llm)

	info, err := svc.VetSource(context.Background(), models.Reference{
		Title: "P1",
		Link:  "https://arxiv.org/abs/0001",
	})
	require.NoError(t, err)
	assert.Equal(t, "Peer-reviewed", info.PeerReviewStatus)
	assert.Equal(t, "Well-known university", info.AuthorAffiliation)
	assert.Equal(t, "Recent (last 2 years)", info.PublicationRecency)
	require.Len(t, llm.lastRequest.Messages, 1)
	assert.Contains(t, llm.lastRequest.Messages[0].Content, "https://arxiv.org/abs/0001")
}

func TestVetSourceRequiresLink(t *testing.T) {
	svc := NewReferenceService(newTestProjectService(t), &fakeCompleter{})

	_, err := svc.VetSource(context.Background(), models.Reference{Title: "no link"})
	assert.Error(t, err)
}

func TestVetSourcePropagatesFailures(t *testing.T) {
	ref := models.Reference{Title: "P1", Link: "https://x"}

	t.Run("search error", func(t *testing.T) {
		svc := NewReferenceService(newTestProjectService(t), &fakeCompleter{
			chatErr: errors.New("search down"),
		})
		_, err := svc.VetSource(context.Background(), ref)
		assert.Error(t, err)
	})

	t.Run("structuring error", func(t *testing.T) {
		svc := NewReferenceService(newTestProjectService(t), &fakeCompleter{
			chatReply:     "raw",
			structuredErr: errors.New("bad JSON"),
		})
		_, err := svc.VetSource(context.Background(), ref)
		assert.Error(t, err)
	})
}
