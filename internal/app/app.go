// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/scholarforge/scholarforge/internal/api"
	"github.com/scholarforge/scholarforge/internal/config"
	"github.com/scholarforge/scholarforge/internal/di"
	"github.com/scholarforge/scholarforge/internal/services"
	"github.com/scholarforge/scholarforge/internal/utils"
)

// server abstracts *http.Server so shutdown can be tested.
type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App holds the process-wide application state.
type App struct {
	config   *config.AppConfig
	router   http.Handler
	server   server
	stopChan chan os.Signal
}

var instance *App

// GetApp returns the singleton application instance.
func GetApp() *App {
	if instance == nil {
		instance = &App{
			stopChan: make(chan os.Signal, 1),
		}
	}
	return instance
}

// Initialize loads configuration, sets up logging, wires the services
// into the DI container and builds the router.
func Initialize(dataDir string) error {
	if err := config.InitConfig(dataDir); err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	cfg := config.GetCurrentConfig()
	GetApp().config = cfg

	if err := initLogger(cfg.LogDir); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := InitServices(); err != nil {
		return fmt.Errorf("init services: %w", err)
	}

	router, err := api.SetupRouter()
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}
	GetApp().router = router

	return nil
}

// InitServices registers every service in the DI container, in
// dependency order. Safe to call once per process.
func InitServices() error {
	container := di.GetContainer()
	cfg := config.GetCurrentConfig()

	dataDir := "data"
	if cfg != nil && cfg.DataDir != "" {
		dataDir = cfg.DataDir
	}

	// LLM first: most services depend on it. A missing or broken
	// provider config yields a not-ready service, never a startup error.
	llmService, err := services.NewLLMService()
	if err != nil || llmService == nil {
		llmService = services.NewEmptyLLMService()
	}
	container.Register("llm", llmService)

	projectService := services.NewProjectService(filepath.Join(dataDir, "projects"))
	container.Register("project", projectService)
	if projectService.Storage != nil {
		container.Register("fileCache", projectService.Storage)
	}

	container.Register("topic", services.NewTopicService(projectService, llmService))
	container.Register("outline", services.NewOutlineService(projectService, llmService))
	container.Register("paper", services.NewPaperService(projectService, llmService))
	container.Register("coach", services.NewCoachService(projectService, llmService))
	container.Register("reference", services.NewReferenceService(projectService, llmService))
	container.Register("resource", services.NewResourceService(projectService, llmService))
	container.Register("plagiarism", services.NewPlagiarismService(projectService))
	container.Register("export", services.NewExportService(projectService, filepath.Join(dataDir, "exports")))

	return nil
}

// initLogger creates the log directory and points the structured
// logger at a dated log file.
func initLogger(logDir string) error {
	if logDir == "" {
		logDir = "logs"
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("scholarforge_%s.log", time.Now().Format("2006-01-02")))
	if err := utils.InitLogger(logFile); err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	logger := utils.GetLogger()
	logger.SetDefaults(map[string]interface{}{"service": "scholarforge"})
	if IsDebugMode() {
		logger.SetLogLevel(utils.DEBUG)
	}

	return nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then
// shuts down gracefully.
func Run() error {
	app := GetApp()

	if app.server == nil {
		port := "8080"
		if app.config != nil && app.config.Port != "" {
			port = app.config.Port
		}
		app.server = &http.Server{
			Addr:    ":" + port,
			Handler: app.router,
		}
	}

	errChan := make(chan error, 1)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	signal.Notify(app.stopChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-app.stopChan:
	}

	utils.GetLogger().Info("Shutting down server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	app.cleanup()
	return nil
}

// cleanup runs at shutdown. Services hold no open connections, so
// flushing the logger is the only work left.
func (a *App) cleanup() {
	utils.GetLogger().Info("Application cleanup complete", nil)
}

// GetConfig returns the application configuration.
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}

// GetDIContainer returns the global DI container.
func GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode reports whether the application runs in debug mode.
func IsDebugMode() bool {
	if instance == nil || instance.config == nil {
		return false
	}
	return instance.config.DebugMode
}
