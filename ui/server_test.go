package ui

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"varexplorer/adapters/excel"
	"varexplorer/app"
	"varexplorer/domain/core"
	"varexplorer/domain/variant"
	"varexplorer/internal/api"
	"varexplorer/internal/charts"
	"varexplorer/internal/config"
	"varexplorer/internal/errors"
	"varexplorer/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubSource annotates the identifiers it knows and skips the rest
type stubSource struct {
	known map[variant.RsID]variant.Annotation
}

func (s stubSource) RegionVariants(context.Context, variant.Region) ([]variant.Variant, error) {
	return []variant.Variant{{RsID: "rs334", VariantType: "SNV", Start: 5227002, End: 5227002}}, nil
}

func (s stubSource) Annotate(_ context.Context, ids []variant.RsID, progress ports.ProgressFunc) (*variant.AnnotationBatch, error) {
	batch := &variant.AnnotationBatch{}
	for i, id := range ids {
		if ann, ok := s.known[id]; ok {
			batch.Annotations = append(batch.Annotations, ann)
		} else {
			batch.Skipped = append(batch.Skipped, variant.Skipped{RsID: id, Reason: "no data found"})
		}
		if progress != nil {
			progress(i+1, len(ids), id)
		}
	}
	return batch, nil
}

func (s stubSource) AnnotateOne(_ context.Context, id variant.RsID) (*variant.Annotation, error) {
	if ann, ok := s.known[id]; ok {
		return &ann, nil
	}
	return nil, errors.NotFound(string(id))
}

func hbbSource() stubSource {
	return stubSource{known: map[variant.RsID]variant.Annotation{
		"rs334": {
			RsID:                  "rs334",
			ClinicalSignificance:  []string{"pathogenic"},
			MostSevereConsequence: "missense_variant",
			GeneSymbol:            "HBB",
			Frequencies: map[variant.Population]float64{
				variant.PopulationSAS: 0.0102,
				variant.PopulationAFR: 0.0635,
			},
		},
	}}
}

func newTestServer(t *testing.T, source ports.VariantSource) (*Server, *app.Runner) {
	t.Helper()
	hub := api.NewSSEHub()
	renderer := charts.NewRenderer(charts.Config{Width: 600, Height: 400})
	service := app.NewAnalysisService(source, renderer, app.ServiceConfig{TopVariants: 10, TopFocus: 5})
	runner := app.NewRunner(service, hub, 5)
	return newServerWith(t, runner, hub, source), runner
}

func newServerWith(t *testing.T, runner *app.Runner, hub *api.SSEHub, source ports.VariantSource) *Server {
	t.Helper()
	presets := config.NewPresetStore([]variant.Region{{Name: "HBB", Chromosome: "11", Start: 5227002, End: 5229002}})
	t.Cleanup(func() {
		_ = runner.Shutdown(context.Background())
		hub.Close()
	})

	srv, err := NewServer(Dependencies{
		Runner:  runner,
		Presets: presets,
		Hub:     hub,
		API:     api.NewRouter(runner, presets, source),
	})
	require.NoError(t, err)
	return srv
}

func doGet(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func postForm(h http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyses", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIndexRendersForm(t *testing.T) {
	srv, _ := newTestServer(t, hbbSource())

	w := doGet(srv, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Generate Analysis")
	assert.Contains(t, body, "<strong>HBB</strong>")
	assert.Contains(t, body, `value="HBB" selected`)
	assert.Contains(t, body, `value="SAS" checked`)
	assert.NotContains(t, body, `value="EAS" checked`)
	assert.Contains(t, body, "</html>")
}

func TestStartAnalysisValidation(t *testing.T) {
	srv, runner := newTestServer(t, hbbSource())

	tests := []struct {
		name   string
		form   url.Values
		want   string
		status int
	}{
		{
			name:   "no rsids",
			form:   url.Values{"analysis_type": {TypeRsIDs}, "rsids": {"  "}, "populations": {"SAS"}},
			want:   app.MsgNoRsIDs,
			status: http.StatusBadRequest,
		},
		{
			name:   "no populations",
			form:   url.Values{"analysis_type": {TypeRsIDs}, "rsids": {"rs334"}},
			want:   app.MsgNoPopulations,
			status: http.StatusBadRequest,
		},
		{
			name:   "bad region",
			form:   url.Values{"analysis_type": {TypeCustomRegion}, "region": {"chr11"}, "populations": {"SAS"}},
			want:   msgInvalidRegion,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown preset",
			form:   url.Values{"analysis_type": {TypePreset}, "preset": {"CFTR"}, "populations": {"SAS"}},
			want:   "Please choose one of the preset regions",
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown population",
			form:   url.Values{"analysis_type": {TypeRsIDs}, "rsids": {"rs334"}, "populations": {"XYZ"}},
			want:   "Unknown population selected",
			status: http.StatusBadRequest,
		},
		{
			name:   "no type",
			form:   url.Values{"populations": {"SAS"}},
			want:   "Please choose an analysis type",
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForm(srv, tt.form)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
	assert.Empty(t, runner.List(), "rejected requests must not create runs")
}

func TestStartAnalysisKeepsInput(t *testing.T) {
	srv, _ := newTestServer(t, hbbSource())

	w := postForm(srv, url.Values{"analysis_type": {TypeRsIDs}, "rsids": {"rs334 rs99"}, "populations": {}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "rs334 rs99</textarea>")
	assert.Contains(t, body, `value="rsids" checked`)
	assert.NotContains(t, body, `value="SAS" checked`)
}

func TestAnalysisLifecycle(t *testing.T) {
	srv, runner := newTestServer(t, hbbSource())

	w := postForm(srv, url.Values{
		"analysis_type": {TypeRsIDs},
		"rsids":         {"rs334, rs_missing"},
		"populations":   {"AFR", "SAS"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/analyses/"), location)
	runner.Wait()

	id, err := core.ParseRunID(strings.TrimPrefix(location, "/analyses/"))
	require.NoError(t, err)
	rn, err := runner.Get(id)
	require.NoError(t, err)
	assert.Equal(t, variant.PopulationSAS, rn.Request.Focus)

	w = doGet(srv, location)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Variant Annotations")
	assert.Contains(t, body, "<td>rs334</td>")
	assert.Contains(t, body, "rs_missing: no data found")
	assert.Contains(t, body, "Population Summary")
	assert.Contains(t, body, location+"/charts/"+charts.ClinicalSignificanceFile)
	assert.Contains(t, body, location+"/charts/"+charts.FocusFile(variant.PopulationSAS))
	assert.NotContains(t, body, "progress.js")

	w = doGet(srv, location+"/charts/"+charts.AlleleFrequencyFile)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = doGet(srv, location+"/charts/missing.png")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doGet(srv, location+"/export.xlsx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(excel.AnnotationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "rs334", rows[1][0])

	w = doGet(srv, location+"/events")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event:progress")
	assert.Contains(t, w.Body.String(), `"status":"complete"`)
}

func TestAnalysisNoDataShowsError(t *testing.T) {
	srv, runner := newTestServer(t, stubSource{})

	w := postForm(srv, url.Values{"analysis_type": {TypePreset}, "preset": {"hbb"}, "populations": {"SAS"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	runner.Wait()

	w = doGet(srv, w.Header().Get("Location"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), app.MsgNoVariantData)
	assert.NotContains(t, w.Body.String(), "Variant Annotations")
}

func TestAnalysisNotFound(t *testing.T) {
	srv, _ := newTestServer(t, hbbSource())

	w := doGet(srv, "/analyses/"+core.NewRunID().String())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no longer exists")

	w = doGet(srv, "/analyses/not-a-run")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGet(srv, "/analyses/"+core.NewRunID().String()+"/export.xlsx")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndAPIMount(t *testing.T) {
	srv, _ := newTestServer(t, hbbSource())

	w := doGet(srv, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","presets":1}`, w.Body.String())

	w = doGet(srv, "/api/v1/annotations/rs334")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"gene_symbol":"HBB"`)

	w = doGet(srv, "/static/app.css")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChartTitle(t *testing.T) {
	assert.Equal(t, "Clinical Significance Distribution", chartTitle(charts.ClinicalSignificanceFile, variant.PopulationSAS))
	assert.Equal(t, "Top Variants in African Population", chartTitle(charts.FocusFile(variant.PopulationAFR), variant.PopulationAFR))
	assert.Equal(t, "other.png", chartTitle("other.png", variant.PopulationAFR))
}

// stalledAnalyzer runs until its context is cancelled
type stalledAnalyzer struct{}

func (stalledAnalyzer) Run(ctx context.Context, _ core.RunID, _ app.AnalysisRequest, stage app.StageFunc) (*app.AnalysisResult, error) {
	stage(0.1, "Fetching annotations")
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestServeShutdownEndsEventStreams(t *testing.T) {
	hub := api.NewSSEHub()
	runner := app.NewRunner(stalledAnalyzer{}, hub, 5)
	srv := newServerWith(t, runner, hub, hbbSource())

	rn, err := runner.Start(app.AnalysisRequest{Mode: app.ModeRsIDs, RsIDs: []variant.RsID{"rs334"}, Populations: variant.DefaultPopulations})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/analyses/" + rn.ID.String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event:progress\n", line)

	start := time.Now()
	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down while an event stream was open")
	}
}
