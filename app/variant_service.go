package app

import (
	"context"
	"fmt"
	"time"

	"varexplorer/adapters/excel"
	"varexplorer/domain/core"
	"varexplorer/domain/variant"
	"varexplorer/internal"
	"varexplorer/internal/analysis"
	"varexplorer/internal/charts"
	"varexplorer/internal/errors"
	"varexplorer/ports"
)

// Messages shown on the dashboard when a request cannot run
const (
	MsgNoRsIDs       = "Please enter at least one rsID"
	MsgNoPopulations = "Please select at least one population to compare"
	MsgNoVariantData = "No variant data found. Please check your input."
)

// AnalysisMode selects where the identifiers come from
type AnalysisMode string

const (
	ModeRegion AnalysisMode = "region"
	ModeRsIDs  AnalysisMode = "rsids"
)

// AnalysisRequest is one user selection from the dashboard or CLI
type AnalysisRequest struct {
	Mode        AnalysisMode         `json:"mode"`
	Region      variant.Region       `json:"region"`
	RsIDs       []variant.RsID       `json:"rsids,omitempty"`
	Populations []variant.Population `json:"populations"`
	Focus       variant.Population   `json:"focus"`
}

// Normalize validates the request and fills in the focus population.
// Identifiers are de-duplicated and populations put in display order.
func (r *AnalysisRequest) Normalize() error {
	switch r.Mode {
	case ModeRsIDs:
		r.RsIDs = variant.Dedupe(r.RsIDs)
		if len(r.RsIDs) == 0 {
			return errors.ValidationError(MsgNoRsIDs)
		}
	case ModeRegion:
		if err := r.Region.Validate(); err != nil {
			return errors.Wrap(errors.ValidationError(err.Error()), "Please enter a valid region (chromosome:start-end)")
		}
	default:
		return errors.ValidationError(fmt.Sprintf("unknown analysis mode %q", r.Mode))
	}

	r.Populations = variant.SortedPopulations(dedupePopulations(r.Populations))
	if len(r.Populations) == 0 {
		return errors.ValidationError(MsgNoPopulations)
	}

	if r.Focus == "" {
		r.Focus = r.Populations[0]
		for _, p := range r.Populations {
			if p == variant.PopulationSAS {
				r.Focus = p
				break
			}
		}
	}
	return nil
}

func dedupePopulations(pops []variant.Population) []variant.Population {
	seen := make(map[variant.Population]bool, len(pops))
	out := make([]variant.Population, 0, len(pops))
	for _, p := range pops {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// AnalysisResult holds everything produced by one run
type AnalysisResult struct {
	RunID       core.RunID           `json:"run_id"`
	Request     AnalysisRequest      `json:"request"`
	Variants    []variant.Variant    `json:"variants,omitempty"`
	Annotations []variant.Annotation `json:"annotations"`
	Skipped     []variant.Skipped    `json:"skipped,omitempty"`
	Summary     *analysis.Summary    `json:"summary"`
	Charts      []charts.Artifact    `json:"-"`
	StartedAt   core.Timestamp       `json:"started_at"`
	CompletedAt core.Timestamp       `json:"completed_at"`
	Duration    time.Duration        `json:"duration"`
}

// Chart returns the artifact with the given file name
func (r *AnalysisResult) Chart(name string) (charts.Artifact, bool) {
	for _, a := range r.Charts {
		if a.Name == name {
			return a, true
		}
	}
	return charts.Artifact{}, false
}

// Workbook builds the xlsx export of the result
func (r *AnalysisResult) Workbook() *excel.Workbook {
	wb := &excel.Workbook{
		Variants:    r.Variants,
		Annotations: r.Annotations,
		Populations: r.Request.Populations,
		Skipped:     r.Skipped,
	}
	if r.Request.Mode == ModeRegion {
		region := r.Request.Region
		wb.Region = &region
	}
	if r.Summary != nil {
		wb.Counts = r.Summary.ClinicalSignificance
	}
	return wb
}

// StageFunc reports coarse progress of a run
type StageFunc func(fraction float64, message string)

// ServiceConfig holds the row limits used when summarizing
type ServiceConfig struct {
	TopVariants int
	TopFocus    int
}

// AnalysisService runs fetch, summarize and render for one request
type AnalysisService struct {
	source   ports.VariantSource
	renderer *charts.Renderer
	config   ServiceConfig
	logger   *internal.Logger
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(source ports.VariantSource, renderer *charts.Renderer, config ServiceConfig) *AnalysisService {
	return &AnalysisService{
		source:   source,
		renderer: renderer,
		config:   config,
		logger:   internal.DefaultLogger.Named("analysis"),
	}
}

// Source exposes the variant source for single lookups
func (s *AnalysisService) Source() ports.VariantSource {
	return s.source
}

// Run executes the request. Region mode first resolves the identifiers
// overlapping the region. Failed identifiers are skipped; a run with no
// annotation at all fails with a NO_DATA error.
func (s *AnalysisService) Run(ctx context.Context, runID core.RunID, req AnalysisRequest, stage StageFunc) (*AnalysisResult, error) {
	if stage == nil {
		stage = func(float64, string) {}
	}
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		RunID:     runID,
		Request:   req,
		StartedAt: core.Now(),
	}

	ids := req.RsIDs
	if req.Mode == ModeRegion {
		stage(0.02, fmt.Sprintf("Fetching variants in %s", req.Region.Label()))
		variants, err := s.source.RegionVariants(ctx, req.Region)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to fetch variants for region")
		}
		result.Variants = variants
		ids = variant.IDs(variants)
		s.logger.Info("[%s] region %s has %d variants", runID, req.Region.String(), len(ids))
		if len(ids) == 0 {
			return nil, noVariantData()
		}
	}

	stage(0.1, fmt.Sprintf("Fetching annotations for %d variants", len(ids)))
	batch, err := s.source.Annotate(ctx, ids, func(done, total int, id variant.RsID) {
		stage(0.1+0.8*float64(done)/float64(total), fmt.Sprintf("Annotated %s (%d/%d)", id, done, total))
	})
	if err != nil {
		return nil, errors.Wrap(err, "Annotation fetch interrupted")
	}
	result.Annotations = batch.Annotations
	result.Skipped = batch.Skipped
	if len(batch.Annotations) == 0 {
		return nil, noVariantData()
	}

	stage(0.92, "Rendering charts")
	result.Summary = analysis.Summarize(batch.Annotations, analysis.Options{
		Populations: req.Populations,
		Focus:       req.Focus,
		TopVariants: s.config.TopVariants,
		TopFocus:    s.config.TopFocus,
	})
	artifacts, err := s.renderer.RenderAll(ctx, result.Summary)
	if err != nil {
		return nil, errors.Wrap(errors.InternalError(err.Error()), "Failed to render charts")
	}
	result.Charts = artifacts

	result.CompletedAt = core.Now()
	result.Duration = result.CompletedAt.Time().Sub(result.StartedAt.Time())
	stage(1, fmt.Sprintf("Analysis complete: %d annotated, %d skipped", len(result.Annotations), len(result.Skipped)))
	s.logger.Info("[%s] completed in %s", runID, result.Duration.Round(time.Millisecond))
	return result, nil
}

func noVariantData() error {
	return &errors.AppError{
		Code:    errors.CodeNoData,
		Message: MsgNoVariantData,
		Cause:   core.ErrNoAnnotations,
	}
}
