// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/scholarforge/scholarforge/internal/config"
	"github.com/scholarforge/scholarforge/internal/di"
	"github.com/scholarforge/scholarforge/internal/services"
)

// SetupRouter builds the gin engine from services already registered
// in the DI container. It never creates service instances itself.
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	container := di.GetContainer()

	projectService, ok := container.Get("project").(*services.ProjectService)
	if !ok {
		return nil, fmt.Errorf("project service is not initialized")
	}

	topicService, ok := container.Get("topic").(*services.TopicService)
	if !ok {
		return nil, fmt.Errorf("topic service is not initialized")
	}

	outlineService, ok := container.Get("outline").(*services.OutlineService)
	if !ok {
		return nil, fmt.Errorf("outline service is not initialized")
	}

	paperService, ok := container.Get("paper").(*services.PaperService)
	if !ok {
		return nil, fmt.Errorf("paper service is not initialized")
	}

	coachService, ok := container.Get("coach").(*services.CoachService)
	if !ok {
		return nil, fmt.Errorf("coach service is not initialized")
	}

	referenceService, ok := container.Get("reference").(*services.ReferenceService)
	if !ok {
		return nil, fmt.Errorf("reference service is not initialized")
	}

	resourceService, ok := container.Get("resource").(*services.ResourceService)
	if !ok {
		return nil, fmt.Errorf("resource service is not initialized")
	}

	plagiarismService, ok := container.Get("plagiarism").(*services.PlagiarismService)
	if !ok {
		return nil, fmt.Errorf("plagiarism service is not initialized")
	}

	exportService, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("export service is not initialized")
	}

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("llm service is not initialized")
	}

	handler := NewHandler(
		projectService,
		topicService,
		outlineService,
		paperService,
		coachService,
		referenceService,
		resourceService,
		plagiarismService,
		exportService,
		llmService,
	)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(DefaultRateLimit())

	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") == "http" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				return
			}
			c.Next()
		})
	}

	if cfg.StaticDir != "" {
		if _, err := os.Stat(cfg.StaticDir); err == nil {
			r.Static("/static", cfg.StaticDir)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// WebSocket coach channel
	r.GET("/ws/coach/:user_id", handler.CoachWebSocket)

	api := r.Group("/api")
	{
		// ===============================
		// Project and step machine
		// ===============================
		projects := api.Group("/projects/:user_id")
		{
			projects.GET("/state", handler.GetProjectState)
			projects.POST("/start", handler.StartProject)
			projects.POST("/profile", handler.SubmitProfile)
			projects.POST("/navigate", handler.Navigate)
			projects.GET("/dashboard", handler.GetDashboard)

			// ===============================
			// Topic selection and validation
			// ===============================
			topics := projects.Group("/topics")
			{
				topics.POST("/generate", GenerationRateLimit(), handler.GenerateTopics)
				topics.POST("/select", handler.SelectTopic)
			}
			projects.POST("/validation", GenerationRateLimit(), handler.SubmitTopicValidation)

			// ===============================
			// Outline
			// ===============================
			outline := projects.Group("/outline")
			{
				outline.POST("/regenerate", GenerationRateLimit(), handler.RegenerateOutline)
				outline.POST("/confirm", handler.ConfirmOutline)
			}

			// ===============================
			// Section drafting
			// ===============================
			sections := projects.Group("/sections/:title")
			{
				sections.PUT("", handler.SaveSection)
				sections.POST("/generate", GenerationRateLimit(), handler.GenerateSection)
				sections.POST("/subsection", GenerationRateLimit(), handler.GenerateSubsection)
				sections.POST("/enhance", GenerationRateLimit(), handler.EnhanceSection)
				sections.POST("/analyze", GenerationRateLimit(), handler.AnalyzeSection)
			}

			// ===============================
			// Guidance coach
			// ===============================
			coach := projects.Group("/coach")
			{
				coach.POST("/chat", ChatRateLimit(), handler.CoachChat)
				coach.GET("/starters", handler.GetCoachStarters)
			}

			// ===============================
			// References and resources
			// ===============================
			references := projects.Group("/references")
			{
				references.POST("/find", GenerationRateLimit(), handler.FindReferences)
				references.POST("/vet", GenerationRateLimit(), handler.VetReference)
			}
			projects.POST("/resources/find", GenerationRateLimit(), handler.FindResources)

			projects.POST("/plagiarism/check", handler.CheckPlagiarism)

			projects.GET("/export", handler.ExportPaper)
		}

		api.GET("/analysis-kinds", handler.GetAnalysisKinds)

		// ===============================
		// Settings and provider status
		// ===============================
		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.POST("", handler.SaveSettings)
		}

		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/models", handler.GetLLMModels)
		}

		wsGroup := api.Group("/ws")
		{
			wsGroup.GET("/status", handler.GetWebSocketStatus)
		}

		api.GET("/metrics", handler.GetMetrics)
	}

	return r, nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
