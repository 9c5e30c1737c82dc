// internal/models/project.go
package models

import (
	"strings"
	"time"
)

// The two degree levels the wizard supports.
const (
	LevelBachelors = "Bachelor's"
	LevelMasters   = "Master's"
)

// UserProfile describes the student driving the project. Submitting the
// profile form always replaces the whole value; fields are never merged
// individually.
type UserProfile struct {
	Name           string `json:"name"`
	AcademicLevel  string `json:"academic_level"`
	DegreeName     string `json:"degree_name"`
	Stream         string `json:"stream"`
	SpecificTopic  string `json:"specific_topic,omitempty"`
	ExcitingTopics string `json:"exciting_topics,omitempty"`
}

// IsComplete reports whether the profile satisfies the wizard's
// minimum: a name and a stream/major.
func (p UserProfile) IsComplete() bool {
	return p.Name != "" && p.Stream != ""
}

// ResearchTopic is one AI-suggested (or selected) thesis topic.
type ResearchTopic struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TopicValidationAnswers holds the three critical-thinking questions a
// student must answer before an outline is generated. All three must be
// non-empty; a missing answer is a validation error, never a default.
type TopicValidationAnswers struct {
	ResearchQuestion string `json:"research_question"`
	KeyResearchers   string `json:"key_researchers"`
	Novelty          string `json:"novelty"`
}

// IsComplete reports whether every answer has content beyond whitespace.
func (a TopicValidationAnswers) IsComplete() bool {
	return strings.TrimSpace(a.ResearchQuestion) != "" &&
		strings.TrimSpace(a.KeyResearchers) != "" &&
		strings.TrimSpace(a.Novelty) != ""
}

// Subsection is a nested entry of an OutlineSection.
type Subsection struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// OutlineSection is one chapter of the paper outline. Order within the
// outline slice is significant: chapter numbering derives from it.
type OutlineSection struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Subsections []Subsection `json:"subsections,omitempty"`
}

// SectionContent is the authored body of one outline section, keyed by
// the section title in Project.PaperData.
type SectionContent struct {
	Markdown  string   `json:"markdown"`
	Citations []string `json:"citations"`
}

// Chat message roles.
const (
	ChatRoleUser  = "user"
	ChatRoleModel = "model"
)

// ChatMessage is one turn of the guidance-coach conversation. The chat
// history is append-only: messages are never reordered or deleted.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PlagiarismSource is one matched source in a plagiarism report.
type PlagiarismSource struct {
	URL          string  `json:"url"`
	PercentMatch float64 `json:"percent_match"`
}

// PlagiarismReport is replaced wholesale on each check. The check
// itself is not implemented; see services.PlagiarismService.
type PlagiarismReport struct {
	Status          string             `json:"status"`
	SimilarityScore float64            `json:"similarity_score"`
	Sources         []PlagiarismSource `json:"sources"`
	CheckedAt       time.Time          `json:"checked_at"`
}

// Project is the aggregate for one user's in-progress paper. It is the
// single unit of persistence: every mutation reads it, applies a patch
// and writes it back whole.
type Project struct {
	UserProfile     UserProfile               `json:"user_profile"`
	Topic           *ResearchTopic            `json:"topic"`
	SuggestedTopics []ResearchTopic           `json:"suggested_topics"`
	TopicValidation *TopicValidationAnswers   `json:"topic_validation,omitempty"`
	Outline         []OutlineSection          `json:"outline"`
	PaperData       map[string]SectionContent `json:"paper_data"`
	ChatHistory     []ChatMessage             `json:"chat_history"`
	Plagiarism      *PlagiarismReport         `json:"plagiarism_report,omitempty"`
}

// NewProject returns the empty aggregate a user starts with.
func NewProject() *Project {
	return &Project{
		UserProfile: UserProfile{
			AcademicLevel: LevelBachelors,
		},
		SuggestedTopics: []ResearchTopic{},
		Outline:         []OutlineSection{},
		PaperData:       map[string]SectionContent{},
		ChatHistory:     []ChatMessage{},
	}
}

// ProjectPatch is a shallow field-level update: a set field replaces the
// current value wholesale (a supplied outline replaces the list, it does
// not append). Nil fields are left untouched. ClearTopic and
// ClearValidation distinguish "set to nil" from "leave alone".
type ProjectPatch struct {
	UserProfile     *UserProfile
	Topic           *ResearchTopic
	ClearTopic      bool
	SuggestedTopics []ResearchTopic
	TopicValidation *TopicValidationAnswers
	ClearValidation bool
	Outline         []OutlineSection
	PaperData       map[string]SectionContent
	ChatHistory     []ChatMessage
	Plagiarism      *PlagiarismReport
}

// Apply merges the patch into the project.
func (p *Project) Apply(patch ProjectPatch) {
	if patch.UserProfile != nil {
		p.UserProfile = *patch.UserProfile
	}
	if patch.ClearTopic {
		p.Topic = nil
	} else if patch.Topic != nil {
		topic := *patch.Topic
		p.Topic = &topic
	}
	if patch.SuggestedTopics != nil {
		p.SuggestedTopics = patch.SuggestedTopics
	}
	if patch.ClearValidation {
		p.TopicValidation = nil
	} else if patch.TopicValidation != nil {
		answers := *patch.TopicValidation
		p.TopicValidation = &answers
	}
	if patch.Outline != nil {
		p.Outline = patch.Outline
	}
	if patch.PaperData != nil {
		p.PaperData = patch.PaperData
	}
	if patch.ChatHistory != nil {
		p.ChatHistory = patch.ChatHistory
	}
	if patch.Plagiarism != nil {
		report := *patch.Plagiarism
		p.Plagiarism = &report
	}
}

// OutlineSectionByTitle returns the outline section with the given
// title, or false when the title is not part of the current outline.
func (p *Project) OutlineSectionByTitle(title string) (OutlineSection, bool) {
	for _, section := range p.Outline {
		if section.Title == title {
			return section, true
		}
	}
	return OutlineSection{}, false
}
