// internal/services/plagiarism_service.go
package services

import (
	"strings"
	"time"

	apperrors "github.com/scholarforge/scholarforge/internal/errors"
	"github.com/scholarforge/scholarforge/internal/models"
)

// PlagiarismStatusNotImplemented marks the deterministic stub verdict
// returned until a real detection backend is integrated.
const PlagiarismStatusNotImplemented = "not_implemented"

// PlagiarismService is a stub: it records that a check was requested
// and returns a zero similarity verdict, never a fabricated score.
type PlagiarismService struct {
	Projects *ProjectService
}

func NewPlagiarismService(projects *ProjectService) *PlagiarismService {
	return &PlagiarismService{Projects: projects}
}

// CheckText produces the stub report for a piece of text and stores it
// on the project, replacing any earlier report.
func (s *PlagiarismService) CheckText(userID, text string) (*models.PlagiarismReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("text to check is required", nil)
	}

	report := &models.PlagiarismReport{
		Status:          PlagiarismStatusNotImplemented,
		SimilarityScore: 0,
		Sources:         []models.PlagiarismSource{},
		CheckedAt:       time.Now(),
	}

	_, err := s.Projects.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		p.Apply(models.ProjectPatch{Plagiarism: report})
		return step, nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}
