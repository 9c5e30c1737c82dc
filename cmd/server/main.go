// cmd/server/main.go
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/scholarforge/scholarforge/internal/app"
	"github.com/scholarforge/scholarforge/internal/config"

	// provider registration
	_ "github.com/scholarforge/scholarforge/internal/llm/providers/google"
	_ "github.com/scholarforge/scholarforge/internal/llm/providers/openai"
)

func main() {
	log.Println("Starting ScholarForge server...")

	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("Base configuration loaded, port %s", baseConfig.Port)

	createDirectories(baseConfig)

	if err := app.Initialize(baseConfig.DataDir); err != nil {
		log.Fatalf("initialize application: %v", err)
	}
	log.Println("Application initialized")

	log.Printf("Listening on http://localhost:%s", baseConfig.Port)

	if err := app.Run(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}

	log.Println("Server shut down cleanly")
}

// createDirectories makes sure the data layout exists before any
// service touches it.
func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "projects"),
		filepath.Join(cfg.DataDir, "exports"),
		cfg.LogDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("create directory %s: %v", dir, err)
		}
	}
}
