package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"varexplorer/app"
	"varexplorer/domain/core"
	"varexplorer/domain/variant"
	"varexplorer/internal"
	"varexplorer/internal/errors"
	"varexplorer/ports"
)

// RunStore is the read side of the analysis runner
type RunStore interface {
	Get(id core.RunID) (app.Run, error)
	List() []app.Run
}

// PresetSource lists the named regions offered on the dashboard
type PresetSource interface {
	Regions() []variant.Region
}

// Router serves the JSON API
type Router struct {
	mux     *chi.Mux
	runs    RunStore
	presets PresetSource
	source  ports.VariantSource
	logger  *internal.Logger
}

// NewRouter creates the JSON API router
func NewRouter(runs RunStore, presets PresetSource, source ports.VariantSource) *Router {
	r := &Router{
		mux:     chi.NewRouter(),
		runs:    runs,
		presets: presets,
		source:  source,
		logger:  internal.DefaultLogger.Named("api"),
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

func (r *Router) setupMiddleware() {
	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.Recoverer)
	r.mux.Use(middleware.Timeout(60 * time.Second))
}

func (r *Router) setupRoutes() {
	r.mux.Get("/regions", r.handleRegions)
	r.mux.Get("/populations", r.handlePopulations)
	r.mux.Get("/annotations/{rsid}", r.handleAnnotation)
	r.mux.Get("/analyses", r.handleListAnalyses)
	r.mux.Get("/analyses/{id}", r.handleGetAnalysis)
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) handleRegions(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"regions": r.presets.Regions(),
	})
}

func (r *Router) handlePopulations(w http.ResponseWriter, req *http.Request) {
	type population struct {
		Code    variant.Population `json:"code"`
		Label   string             `json:"label"`
		Default bool               `json:"default"`
	}
	defaults := make(map[variant.Population]bool)
	for _, p := range variant.DefaultPopulations {
		defaults[p] = true
	}
	out := make([]population, 0, len(variant.AllPopulations))
	for _, p := range variant.AllPopulations {
		out = append(out, population{Code: p, Label: p.Label(), Default: defaults[p]})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"populations": out})
}

func (r *Router) handleAnnotation(w http.ResponseWriter, req *http.Request) {
	id := variant.RsID(chi.URLParam(req, "rsid"))
	annotation, err := r.source.AnnotateOne(req.Context(), id)
	if err != nil {
		r.logger.Debug("annotation lookup for %s failed: %v", id, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, annotation)
}

func (r *Router) handleListAnalyses(w http.ResponseWriter, req *http.Request) {
	runs := r.runs.List()
	for i := range runs {
		runs[i].Result = nil
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": runs})
}

func (r *Router) handleGetAnalysis(w http.ResponseWriter, req *http.Request) {
	id, err := core.ParseRunID(chi.URLParam(req, "id"))
	if err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	run, err := r.runs.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), map[string]string{
		"error": errors.UserMessage(err),
		"code":  errors.GetCode(err),
	})
}
