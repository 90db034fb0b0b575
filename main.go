package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"varexplorer/domain/variant"
	"varexplorer/internal/config"
	"varexplorer/internal/container"
	"varexplorer/ui"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := appContainer.Shutdown(ctx); err != nil {
			log.Printf("Shutdown incomplete: %v", err)
		}
	}()

	if appContainer.PresetWatcher != nil {
		appContainer.PresetWatcher.OnReload(func(regions []variant.Region) {
			log.Printf("Region presets reloaded: %d regions", len(regions))
		})
		if err := appContainer.StartWatcher(); err != nil {
			log.Printf("Warning: presets will not reload on change: %v", err)
		}
	}

	server, err := ui.NewServer(ui.Dependencies{
		Runner:  appContainer.Runner,
		Presets: appContainer.Presets,
		Hub:     appContainer.SSEHub,
		API:     appContainer.API,
	})
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	// Start pprof server for performance profiling
	if appConfig.Profiling.Enabled {
		go func() {
			log.Printf("Performance profiling server starting on :%s", appConfig.Profiling.Port)
			log.Printf("View profiles: go tool pprof -http=:8081 http://localhost:%s/debug/pprof/profile?seconds=30", appConfig.Profiling.Port)
			if err := http.ListenAndServe(":"+appConfig.Profiling.Port, nil); err != nil {
				log.Printf("pprof server failed: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx, ":"+appConfig.Server.Port); err != nil {
		log.Printf("Server stopped with error: %v", err)
	}
}
