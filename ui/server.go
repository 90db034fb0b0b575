package ui

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"varexplorer/app"
	"varexplorer/domain/core"
	"varexplorer/domain/run"
	"varexplorer/domain/variant"
	"varexplorer/internal/api"
	"varexplorer/internal/config"
)

// Dependencies are the services the dashboard renders
type Dependencies struct {
	Runner  *app.Runner
	Presets *config.PresetStore
	Hub     *api.SSEHub
	API     http.Handler
}

// Server represents the web server for the variant explorer dashboard
type Server struct {
	router    *gin.Engine
	templates *template.Template
	intro     template.HTML

	runner  *app.Runner
	presets *config.PresetStore
	hub     *api.SSEHub
	api     http.Handler

	httpServer *http.Server
}

// NewServer creates a new web server instance with templates and routes ready
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Runner == nil || deps.Presets == nil || deps.Hub == nil {
		return nil, fmt.Errorf("runner, presets and SSE hub are required")
	}

	templates, err := template.New("").Funcs(templateFuncs()).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	intro, err := renderIntro()
	if err != nil {
		return nil, fmt.Errorf("failed to render intro: %w", err)
	}

	s := &Server{
		router:    gin.New(),
		templates: templates,
		intro:     intro,
		runner:    deps.Runner,
		presets:   deps.Presets,
		hub:       deps.Hub,
		api:       deps.API,
	}
	if err := s.setupMiddleware(); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() error {
	s.router.Use(gin.Logger(), gin.Recovery())

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create static filesystem: %w", err)
	}
	s.router.StaticFS("/static", http.FS(staticFS))
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/healthz", s.handleHealth)

	analyses := s.router.Group("/analyses")
	{
		analyses.POST("", s.handleStartAnalysis)
		analyses.GET("/:id", s.handleAnalysis)
		analyses.GET("/:id/events", s.hub.Handler(s.currentEvent))
		analyses.GET("/:id/charts/:file", s.handleChart)
		analyses.GET("/:id/export.xlsx", s.handleExport)
	}

	if s.api != nil {
		s.router.Any("/api/v1/*path", gin.WrapH(http.StripPrefix("/api/v1", s.api)))
	}
}

// ServeHTTP makes the server usable as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. Open event streams
// are ended by closing the SSE hub, since Shutdown does not cancel the
// contexts of active requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(s.hub.Close)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting variant explorer on http://%s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Printf("Shutting down web server")
	return s.httpServer.Shutdown(shutdownCtx)
}

// currentEvent adapts a run snapshot for the SSE handler
func (s *Server) currentEvent(id core.RunID) (run.Event, bool) {
	rn, err := s.runner.Get(id)
	if err != nil {
		return run.Event{}, false
	}
	return run.Event{
		RunID:     rn.ID,
		Status:    rn.Status,
		Progress:  rn.Progress,
		Message:   rn.Message,
		Error:     rn.Error,
		Timestamp: rn.UpdatedAt,
	}, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"presets": len(s.presets.Regions()),
	})
}

// indexPage is the data behind the selection form
type indexPage struct {
	Title       string
	Intro       template.HTML
	Presets     []variant.Region
	Populations []variant.Population
	Form        analysisForm
	Warning     string
	Recent      []app.Run
}

func (s *Server) indexData(form analysisForm, warning string) indexPage {
	recent := s.runner.List()
	if len(recent) > 5 {
		recent = recent[:5]
	}
	return indexPage{
		Title:       "Genetic Variant Explorer",
		Intro:       s.intro,
		Presets:     s.presets.Regions(),
		Populations: variant.AllPopulations,
		Form:        form,
		Warning:     warning,
		Recent:      recent,
	}
}
