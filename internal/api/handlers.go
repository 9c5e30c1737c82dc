// internal/api/handlers.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scholarforge/scholarforge/internal/config"
	apperrors "github.com/scholarforge/scholarforge/internal/errors"
	"github.com/scholarforge/scholarforge/internal/llm"
	"github.com/scholarforge/scholarforge/internal/models"
	"github.com/scholarforge/scholarforge/internal/services"
	"github.com/scholarforge/scholarforge/internal/utils"
)

// Handler serves the HTTP API.
type Handler struct {
	ProjectService    *services.ProjectService
	TopicService      *services.TopicService
	OutlineService    *services.OutlineService
	PaperService      *services.PaperService
	CoachService      *services.CoachService
	ReferenceService  *services.ReferenceService
	ResourceService   *services.ResourceService
	PlagiarismService *services.PlagiarismService
	ExportService     *services.ExportService
	LLMService        *services.LLMService
	WebSocketHandler  *WebSocketHandler
	Response          *ResponseHelper
}

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError is the standard error payload.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewHandler(
	projectService *services.ProjectService,
	topicService *services.TopicService,
	outlineService *services.OutlineService,
	paperService *services.PaperService,
	coachService *services.CoachService,
	referenceService *services.ReferenceService,
	resourceService *services.ResourceService,
	plagiarismService *services.PlagiarismService,
	exportService *services.ExportService,
	llmService *services.LLMService,
) *Handler {
	return &Handler{
		ProjectService:    projectService,
		TopicService:      topicService,
		OutlineService:    outlineService,
		PaperService:      paperService,
		CoachService:      coachService,
		ReferenceService:  referenceService,
		ResourceService:   resourceService,
		PlagiarismService: plagiarismService,
		ExportService:     exportService,
		LLMService:        llmService,
		WebSocketHandler:  NewWebSocketHandler(coachService, llmService),
		Response:          NewResponseHelper(),
	}
}

// respondError maps service errors onto HTTP statuses and API codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrLLMNotReady):
		h.Response.Error(c, http.StatusServiceUnavailable, ErrorLLMServiceUnavailable,
			"AI service is not ready", err.Error())
	case errors.Is(err, services.ErrMalformedResponse):
		h.Response.Error(c, http.StatusBadGateway, ErrorMalformedAIResponse,
			"AI returned an unusable response", err.Error())
	case errors.Is(err, services.ErrStepNotAllowed):
		h.Response.Error(c, http.StatusConflict, ErrorStepNotAllowed, err.Error())
	case errors.Is(err, services.ErrProfileRequired):
		h.Response.Error(c, http.StatusConflict, ErrorProfileRequired, err.Error())
	case errors.Is(err, services.ErrTopicRequired):
		h.Response.Error(c, http.StatusConflict, ErrorTopicRequired, err.Error())
	case errors.Is(err, services.ErrOutlineRequired):
		h.Response.Error(c, http.StatusConflict, ErrorOutlineRequired, err.Error())
	case apperrors.IsValidationError(err):
		h.Response.BadRequest(c, err.Error())
	case apperrors.IsNotFoundError(err):
		h.Response.NotFound(c, err.Error())
	case apperrors.IsConflictError(err):
		h.Response.Conflict(c, err.Error())
	default:
		h.Response.InternalError(c, "Request failed", err.Error())
	}
}

// ========================================
// Wizard state
// ========================================

// GetProjectState returns the project, reconciled step and progress.
func (h *Handler) GetProjectState(c *gin.Context) {
	state, err := h.ProjectService.GetState(c.Param("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// StartProject moves a user from the landing page into the wizard.
func (h *Handler) StartProject(c *gin.Context) {
	state, err := h.ProjectService.Start(c.Param("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// SubmitProfile saves the profile and resets downstream artifacts.
func (h *Handler) SubmitProfile(c *gin.Context) {
	var profile models.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		h.Response.BadRequest(c, "Invalid profile payload", err.Error())
		return
	}

	state, err := h.ProjectService.SubmitProfile(c.Param("user_id"), profile)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// Navigate jumps to an explicitly requested step.
func (h *Handler) Navigate(c *gin.Context) {
	var req struct {
		Step models.Step `json:"step"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid navigation payload", err.Error())
		return
	}

	state, err := h.ProjectService.Navigate(c.Param("user_id"), req.Step)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// GetDashboard returns the progress dashboard view.
func (h *Handler) GetDashboard(c *gin.Context) {
	project, err := h.ProjectService.GetProject(c.Param("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, services.BuildDashboard(project))
}

// ========================================
// Topics
// ========================================

// GenerateTopics asks the AI for topic suggestions.
func (h *Handler) GenerateTopics(c *gin.Context) {
	state, err := h.TopicService.GenerateTopics(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// SelectTopic records the chosen topic.
func (h *Handler) SelectTopic(c *gin.Context) {
	var topic models.ResearchTopic
	if err := c.ShouldBindJSON(&topic); err != nil {
		h.Response.BadRequest(c, "Invalid topic payload", err.Error())
		return
	}

	state, err := h.TopicService.SelectTopic(c.Param("user_id"), topic)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// SubmitTopicValidation stores the validation answers and generates
// the outline.
func (h *Handler) SubmitTopicValidation(c *gin.Context) {
	var answers models.TopicValidationAnswers
	if err := c.ShouldBindJSON(&answers); err != nil {
		h.Response.BadRequest(c, "Invalid validation payload", err.Error())
		return
	}

	state, err := h.OutlineService.SubmitValidation(c.Request.Context(), c.Param("user_id"), answers)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// ========================================
// Outline
// ========================================

// RegenerateOutline replaces the outline with a fresh generation.
func (h *Handler) RegenerateOutline(c *gin.Context) {
	state, err := h.OutlineService.Regenerate(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// ConfirmOutline locks the outline in and seeds section stubs.
func (h *Handler) ConfirmOutline(c *gin.Context) {
	state, err := h.OutlineService.Confirm(c.Param("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// ========================================
// Paper sections
// ========================================

// SaveSection stores manually edited section content.
func (h *Handler) SaveSection(c *gin.Context) {
	var content models.SectionContent
	if err := c.ShouldBindJSON(&content); err != nil {
		h.Response.BadRequest(c, "Invalid section payload", err.Error())
		return
	}

	state, err := h.PaperService.SaveSection(c.Param("user_id"), c.Param("title"), content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// GenerateSection drafts full section content with the AI.
func (h *Handler) GenerateSection(c *gin.Context) {
	state, err := h.PaperService.GenerateSection(c.Request.Context(), c.Param("user_id"), c.Param("title"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// GenerateSubsection drafts one subsection and appends it.
func (h *Handler) GenerateSubsection(c *gin.Context) {
	var req struct {
		SubsectionTitle string `json:"subsection_title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid subsection payload", err.Error())
		return
	}

	state, err := h.PaperService.GenerateSubsection(
		c.Request.Context(), c.Param("user_id"), c.Param("title"), req.SubsectionTitle)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// EnhanceSection rewrites existing content through an enhancement lens.
func (h *Handler) EnhanceSection(c *gin.Context) {
	var req struct {
		Type string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid enhancement payload", err.Error())
		return
	}

	state, err := h.PaperService.EnhanceSection(
		c.Request.Context(), c.Param("user_id"), c.Param("title"), req.Type)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// AnalyzeSection reviews a drafted section without modifying it.
func (h *Handler) AnalyzeSection(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid analysis payload", err.Error())
		return
	}

	feedback, err := h.PaperService.AnalyzeSection(
		c.Request.Context(), c.Param("user_id"), c.Param("title"), req.Prompt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"feedback": feedback})
}

// GetAnalysisKinds lists the built-in review lenses.
func (h *Handler) GetAnalysisKinds(c *gin.Context) {
	h.Response.Success(c, services.AnalysisKinds())
}

// ========================================
// Coach
// ========================================

// CoachChat appends a chat turn and returns the updated state.
func (h *Handler) CoachChat(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		h.Response.BadRequest(c, "A chat message is required")
		return
	}

	state, err := h.CoachService.Chat(c.Request.Context(), c.Param("user_id"), req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// GetCoachStarters returns the suggested opening prompts.
func (h *Handler) GetCoachStarters(c *gin.Context) {
	h.Response.Success(c, h.CoachService.StarterPrompts())
}

// CoachWebSocket upgrades to the streaming coach channel.
func (h *Handler) CoachWebSocket(c *gin.Context) {
	h.WebSocketHandler.CoachWebSocket(c)
}

// ========================================
// References and resources
// ========================================

// FindReferences runs source discovery for the topic.
func (h *Handler) FindReferences(c *gin.Context) {
	result, err := h.ReferenceService.FindReferences(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, result)
}

// VetReference assesses one source's credibility.
func (h *Handler) VetReference(c *gin.Context) {
	var ref models.Reference
	if err := c.ShouldBindJSON(&ref); err != nil {
		h.Response.BadRequest(c, "Invalid reference payload", err.Error())
		return
	}

	info, err := h.ReferenceService.VetSource(c.Request.Context(), ref)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, info)
}

// FindResources runs technical resource discovery.
func (h *Handler) FindResources(c *gin.Context) {
	result, err := h.ResourceService.FindResources(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, result)
}

// ========================================
// Plagiarism
// ========================================

// CheckPlagiarism runs the stub plagiarism check.
func (h *Handler) CheckPlagiarism(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid plagiarism payload", err.Error())
		return
	}

	report, err := h.PlagiarismService.CheckText(c.Param("user_id"), req.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Response.Success(c, report)
}

// ========================================
// Export
// ========================================

// ExportPaper renders the paper in the requested format.
func (h *Handler) ExportPaper(c *gin.Context) {
	format := models.ExportFormat(c.DefaultQuery("format", "markdown"))
	switch format {
	case models.ExportFormatMarkdown, models.ExportFormatHTML, models.ExportFormatJSON:
	default:
		h.Response.Error(c, http.StatusBadRequest, ErrorExportFormatInvalid,
			"Supported formats: markdown, html, json")
		return
	}

	result, err := h.ExportService.ExportDocument(c.Param("user_id"), format)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Response.ExportResponse(c, result)
}

// ========================================
// Settings and LLM status
// ========================================

// GetLLMStatus reports provider readiness.
func (h *Handler) GetLLMStatus(c *gin.Context) {
	ready, state := h.LLMService.GetProviderStatus()
	h.Response.Success(c, gin.H{
		"ready":    ready,
		"state":    state,
		"provider": h.LLMService.GetProviderName(),
		"model":    h.LLMService.GetDefaultModel(),
	})
}

// GetLLMModels lists the registered providers and their models.
func (h *Handler) GetLLMModels(c *gin.Context) {
	providers := make(map[string][]string)
	for _, name := range llm.ListProviders() {
		providers[name] = llm.GetSupportedModelsForProvider(name)
	}
	h.Response.Success(c, providers)
}

// GetSettings returns the active provider settings, key redacted.
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		h.Response.InternalError(c, "Configuration is not initialized")
		return
	}

	llmConfig := make(map[string]string, len(cfg.LLMConfig))
	for k, v := range cfg.LLMConfig {
		if k == "api_key" {
			if v != "" {
				v = "configured"
			}
		}
		llmConfig[k] = v
	}

	h.Response.Success(c, gin.H{
		"llm_provider": cfg.LLMProvider,
		"llm_config":   llmConfig,
		"debug_mode":   cfg.DebugMode,
	})
}

// SaveSettings updates the provider configuration and reinitializes
// the LLM service with it.
func (h *Handler) SaveSettings(c *gin.Context) {
	var req struct {
		Provider string            `json:"provider"`
		Config   map[string]string `json:"config"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid settings payload", err.Error())
		return
	}
	if req.Provider == "" || req.Config["api_key"] == "" {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid,
			"A provider and api_key are required")
		return
	}

	if err := h.LLMService.UpdateProvider(req.Provider, req.Config); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid,
			"Failed to configure provider", err.Error())
		return
	}

	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		h.Response.InternalError(c, "Failed to persist settings", err.Error())
		return
	}

	h.Response.Success(c, gin.H{"provider": req.Provider}, "Settings saved")
}

// GetMetrics exposes the in-process counters and histograms.
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, utils.GetMetricsCollector().GetMetrics())
}
