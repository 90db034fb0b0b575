package container

import (
	"context"
	"fmt"
	"log"

	"varexplorer/adapters/ensembl"
	"varexplorer/app"
	"varexplorer/internal"
	"varexplorer/internal/api"
	"varexplorer/internal/charts"
	"varexplorer/internal/config"
	"varexplorer/ports"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Data access
	Source ports.VariantSource

	// Analysis
	Renderer *charts.Renderer
	Service  *app.AnalysisService
	Runner   *app.Runner

	// Presentation
	SSEHub        *api.SSEHub
	API           *api.Router
	Presets       *config.PresetStore
	PresetWatcher *config.PresetWatcher
}

// Option customizes container construction
type Option func(*options)

type options struct {
	source ports.VariantSource
}

// WithSource replaces the Ensembl client, mainly for tests
func WithSource(source ports.VariantSource) Option {
	return func(o *options) { o.source = source }
}

// New creates a container with every dependency wired. The preset watcher
// is created but not started; call StartWatcher for that.
func New(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)),
	}
	internal.DefaultLogger = c.Logger

	if err := c.initSource(o.source); err != nil {
		return nil, fmt.Errorf("failed to initialize variant source: %w", err)
	}
	c.initAnalysis()
	if err := c.initPresets(); err != nil {
		return nil, fmt.Errorf("failed to initialize presets: %w", err)
	}
	c.API = api.NewRouter(c.Runner, c.Presets, c.Source)

	log.Printf("Container initialized: Ensembl at %s, %d presets", cfg.Ensembl.BaseURL, len(c.Presets.Regions()))
	return c, nil
}

func (c *Container) initSource(source ports.VariantSource) error {
	if source != nil {
		c.Source = source
		return nil
	}
	client, err := ensembl.NewClient(c.Config.Ensembl, ensembl.WithLogger(c.Logger.Named("ensembl")))
	if err != nil {
		return err
	}
	c.Source = client
	return nil
}

func (c *Container) initAnalysis() {
	c.Renderer = charts.NewRenderer(charts.Config{
		Width:  c.Config.Charts.Width,
		Height: c.Config.Charts.Height,
	})
	c.Service = app.NewAnalysisService(c.Source, c.Renderer, app.ServiceConfig{
		TopVariants: c.Config.Analysis.TopVariants,
		TopFocus:    c.Config.Analysis.TopFocus,
	})
	c.SSEHub = api.NewSSEHub()
	c.Runner = app.NewRunner(c.Service, c.SSEHub, c.Config.Analysis.MaxStoredRuns)
}

func (c *Container) initPresets() error {
	regions, err := config.LoadPresets(c.Config.Presets.File)
	if err != nil {
		return err
	}
	c.Presets = config.NewPresetStore(regions)

	if c.Config.Presets.File == "" || !c.Config.Presets.Watch {
		return nil
	}
	watcher, err := config.NewPresetWatcher(c.Config.Presets.File, c.Presets)
	if err != nil {
		return err
	}
	c.PresetWatcher = watcher
	return nil
}

// StartWatcher begins reloading presets on file changes, when configured
func (c *Container) StartWatcher() error {
	if c.PresetWatcher == nil {
		return nil
	}
	return c.PresetWatcher.Start()
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	var firstErr error
	if c.PresetWatcher != nil {
		if err := c.PresetWatcher.Stop(); err != nil {
			firstErr = err
		}
	}
	if c.Runner != nil {
		if err := c.Runner.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.SSEHub != nil {
		c.SSEHub.Close()
	}
	log.Printf("Container shutdown complete")
	return firstErr
}
