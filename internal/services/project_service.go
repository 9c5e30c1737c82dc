// internal/services/project_service.go
package services

import (
	"errors"
	"fmt"
	"os"
	"sync"

	apperrors "github.com/scholarforge/scholarforge/internal/errors"
	"github.com/scholarforge/scholarforge/internal/models"
	"github.com/scholarforge/scholarforge/internal/storage"
	"github.com/scholarforge/scholarforge/internal/utils"
)

// projectSchemaVersion tags the on-disk envelopes; loading an envelope
// with a different version is refused rather than silently migrated.
const projectSchemaVersion = 1

var (
	ErrTopicRequired   = errors.New("a research topic must be selected first")
	ErrProfileRequired = errors.New("a completed profile is required first")
	ErrOutlineRequired = errors.New("a confirmed outline is required first")
	ErrStepNotAllowed  = errors.New("navigation to this step is not allowed")
	ErrSchemaVersion   = errors.New("unsupported saved data version")
)

// projectEnvelope is the persisted shape of the project slot.
type projectEnvelope struct {
	SchemaVersion int             `json:"schema_version"`
	Project       *models.Project `json:"project"`
}

// stepEnvelope is the persisted shape of the step slot.
type stepEnvelope struct {
	SchemaVersion int         `json:"schema_version"`
	Step          models.Step `json:"step"`
}

// ProjectState is the combined view handed to the frontend: the full
// project, the reconciled step and the derived progress.
type ProjectState struct {
	Project  *models.Project `json:"project"`
	Step     models.Step     `json:"step"`
	Progress int             `json:"progress"`
}

// ProjectService owns the per-user project aggregate and wizard step,
// persisted as two JSON slots under BasePath/<user_id>/.
type ProjectService struct {
	BasePath string
	Storage  *storage.FileStorage

	// serializes mutations per user
	locks *LockManager
}

func NewProjectService(basePath string) *ProjectService {
	if basePath == "" {
		basePath = "data/projects"
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		fmt.Printf("warning: failed to create project directory: %v\n", err)
	}

	fileStorage, err := storage.NewFileStorage(basePath)
	if err != nil {
		fmt.Printf("warning: failed to create file storage: %v\n", err)
		fileStorage = nil
	}

	return &ProjectService{
		BasePath: basePath,
		Storage:  fileStorage,
		locks:    NewLockManager(),
	}
}

func (s *ProjectService) getUserLock(userID string) *sync.Mutex {
	return s.locks.GetUserLock(userID)
}

const (
	projectFileName = "project.json"
	stepFileName    = "step.json"
)

// loadProject reads the project slot, returning a fresh empty project
// when nothing has been saved yet.
func (s *ProjectService) loadProject(userID string) (*models.Project, error) {
	if !s.Storage.FileExists(userID, projectFileName) {
		return models.NewProject(), nil
	}

	var envelope projectEnvelope
	if err := s.Storage.LoadJSONFile(userID, projectFileName, &envelope); err != nil {
		return nil, fmt.Errorf("failed to load project for user %s: %w", userID, err)
	}

	if envelope.SchemaVersion != projectSchemaVersion {
		return nil, fmt.Errorf("%w: project slot has version %d", ErrSchemaVersion, envelope.SchemaVersion)
	}

	if envelope.Project == nil {
		return models.NewProject(), nil
	}

	normalizeProject(envelope.Project)
	return envelope.Project, nil
}

// loadStep reads the step slot, defaulting to the landing step.
func (s *ProjectService) loadStep(userID string) (models.Step, error) {
	if !s.Storage.FileExists(userID, stepFileName) {
		return models.StepLanding, nil
	}

	var envelope stepEnvelope
	if err := s.Storage.LoadJSONFile(userID, stepFileName, &envelope); err != nil {
		return "", fmt.Errorf("failed to load step for user %s: %w", userID, err)
	}

	if envelope.SchemaVersion != projectSchemaVersion {
		return "", fmt.Errorf("%w: step slot has version %d", ErrSchemaVersion, envelope.SchemaVersion)
	}

	if !envelope.Step.Valid() {
		utils.GetLogger().Warn("Saved step is unknown, resetting to landing",
			map[string]interface{}{"user_id": userID, "step": string(envelope.Step)})
		return models.StepLanding, nil
	}

	return envelope.Step, nil
}

func (s *ProjectService) saveProject(userID string, project *models.Project) error {
	envelope := projectEnvelope{
		SchemaVersion: projectSchemaVersion,
		Project:       project,
	}
	if err := s.Storage.SaveJSONFile(userID, projectFileName, envelope); err != nil {
		return fmt.Errorf("failed to save project for user %s: %w", userID, err)
	}
	return nil
}

func (s *ProjectService) saveStep(userID string, step models.Step) error {
	envelope := stepEnvelope{
		SchemaVersion: projectSchemaVersion,
		Step:          step,
	}
	if err := s.Storage.SaveJSONFile(userID, stepFileName, envelope); err != nil {
		return fmt.Errorf("failed to save step for user %s: %w", userID, err)
	}
	return nil
}

// normalizeProject replaces nil collections left by older saves so the
// rest of the code can index without nil checks.
func normalizeProject(p *models.Project) {
	if p.SuggestedTopics == nil {
		p.SuggestedTopics = []models.ResearchTopic{}
	}
	if p.Outline == nil {
		p.Outline = []models.OutlineSection{}
	}
	if p.PaperData == nil {
		p.PaperData = map[string]models.SectionContent{}
	}
	if p.ChatHistory == nil {
		p.ChatHistory = []models.ChatMessage{}
	}
}

// GetState loads the project and step, reconciles the step against the
// project's actual contents and persists any correction.
func (s *ProjectService) GetState(userID string) (*ProjectState, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required", nil)
	}

	lock := s.getUserLock(userID)
	lock.Lock()
	defer lock.Unlock()

	project, err := s.loadProject(userID)
	if err != nil {
		return nil, err
	}

	step, err := s.loadStep(userID)
	if err != nil {
		return nil, err
	}

	reconciled := models.ReconcileStep(step, project)
	if reconciled != step {
		utils.GetLogger().Info("Step reconciled against project state",
			map[string]interface{}{"user_id": userID, "from": string(step), "to": string(reconciled)})
		if err := s.saveStep(userID, reconciled); err != nil {
			return nil, err
		}
	}

	return &ProjectState{
		Project:  project,
		Step:     reconciled,
		Progress: PaperProgress(project),
	}, nil
}

// Mutate runs fn against the loaded project and step under the user's
// lock and persists whatever fn returns. fn gets the reconciled step
// and returns the step to save.
func (s *ProjectService) Mutate(userID string, fn func(p *models.Project, step models.Step) (models.Step, error)) (*ProjectState, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required", nil)
	}

	lock := s.getUserLock(userID)
	lock.Lock()
	defer lock.Unlock()

	project, err := s.loadProject(userID)
	if err != nil {
		return nil, err
	}

	step, err := s.loadStep(userID)
	if err != nil {
		return nil, err
	}

	step = models.ReconcileStep(step, project)

	newStep, err := fn(project, step)
	if err != nil {
		return nil, err
	}

	newStep = models.ReconcileStep(newStep, project)
	if newStep != step {
		utils.NewAPIMetrics().RecordWizardTransition(userID, string(newStep))
	}

	if err := s.saveProject(userID, project); err != nil {
		return nil, err
	}
	if err := s.saveStep(userID, newStep); err != nil {
		return nil, err
	}

	return &ProjectState{
		Project:  project,
		Step:     newStep,
		Progress: PaperProgress(project),
	}, nil
}

// Start moves a user off the landing page into the profile step.
func (s *ProjectService) Start(userID string) (*ProjectState, error) {
	return s.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		return models.StepProfile, nil
	})
}

// SubmitProfile saves the profile and resets every downstream artifact:
// a changed profile invalidates topics, outline and drafted sections.
func (s *ProjectService) SubmitProfile(userID string, profile models.UserProfile) (*ProjectState, error) {
	if !profile.IsComplete() {
		return nil, apperrors.NewValidationError("name and stream are required", nil)
	}

	return s.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		p.Apply(models.ProjectPatch{
			UserProfile:     &profile,
			ClearTopic:      true,
			ClearValidation: true,
			SuggestedTopics: []models.ResearchTopic{},
			Outline:         []models.OutlineSection{},
			PaperData:       map[string]models.SectionContent{},
		})
		return models.StepTopic, nil
	})
}

// SelectTopic records the chosen topic and advances to validation.
func (s *ProjectService) SelectTopic(userID string, topic models.ResearchTopic) (*ProjectState, error) {
	if topic.Title == "" {
		return nil, apperrors.NewValidationError("topic title is required", nil)
	}

	return s.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		p.Apply(models.ProjectPatch{Topic: &topic})
		return models.StepTopicValidation, nil
	})
}

// Navigate moves to an explicitly requested step, subject to the
// prerequisites that step has.
func (s *ProjectService) Navigate(userID string, target models.Step) (*ProjectState, error) {
	if !target.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown step %q", target), nil)
	}

	return s.Mutate(userID, func(p *models.Project, step models.Step) (models.Step, error) {
		if !models.CanNavigate(target, p) {
			return step, apperrors.NewValidationError(
				fmt.Sprintf("cannot navigate to step %q", target), ErrStepNotAllowed)
		}
		return target, nil
	})
}

// GetProject returns the current project without touching the step.
func (s *ProjectService) GetProject(userID string) (*models.Project, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required", nil)
	}

	lock := s.getUserLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return s.loadProject(userID)
}

// ListUsers returns the user ids that have a saved project.
func (s *ProjectService) ListUsers() ([]string, error) {
	return s.Storage.ListDirs(".")
}
