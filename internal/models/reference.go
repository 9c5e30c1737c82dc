// internal/models/reference.go
package models

// SourceVettingInfo is the AI credibility assessment of one reference.
// Field tags are camelCase because the same shape doubles as the
// model-output schema in the vetting prompt.
type SourceVettingInfo struct {
	PeerReviewStatus   string `json:"peerReviewStatus"`
	AuthorAffiliation  string `json:"authorAffiliation"`
	PublicationRecency string `json:"publicationRecency"`
	CredibilitySummary string `json:"credibilitySummary"`
}

// Reference is one discovered source. VettingInfo and UserCritique are
// filled in later and stay transient: reference results are not part of
// the persisted Project.
type Reference struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Link         string             `json:"link"`
	VettingInfo  *SourceVettingInfo `json:"vettingInfo,omitempty"`
	UserCritique string             `json:"userCritique,omitempty"`
}

// ReferenceResult groups discovered sources by kind. Any category may
// legitimately be empty. Tags match the JSON shape requested from the
// model in the structuring prompt.
type ReferenceResult struct {
	ResearchPapers      []Reference `json:"researchPapers"`
	ArticlesAndNews     []Reference `json:"articlesAndNews"`
	CoursesAndResources []Reference `json:"coursesAndResources"`
}

// ResourceItem is one technical resource (dataset, repository, tool).
type ResourceItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// ResourceResult groups technical resources by kind.
type ResourceResult struct {
	Datasets          []ResourceItem `json:"datasets"`
	CodeRepositories  []ResourceItem `json:"codeRepositories"`
	ToolsAndLibraries []ResourceItem `json:"toolsAndLibraries"`
}
