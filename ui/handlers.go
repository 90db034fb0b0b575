package ui

import (
	"bytes"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"varexplorer/app"
	"varexplorer/domain/core"
	"varexplorer/domain/run"
	"varexplorer/domain/variant"
	"varexplorer/internal/charts"
	"varexplorer/internal/errors"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleIndex(c *gin.Context) {
	s.renderTemplate(c, http.StatusOK, "index.html", s.indexData(defaultForm(s.presets.Regions()), ""))
}

func (s *Server) handleStartAnalysis(c *gin.Context) {
	var form analysisForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderTemplate(c, http.StatusBadRequest, "index.html", s.indexData(form, "Could not read the form, please try again"))
		return
	}

	req, err := form.request(s.presets)
	var rn app.Run
	if err == nil {
		rn, err = s.runner.Start(req)
	}
	if err != nil {
		log.Printf("[handleStartAnalysis] rejected %s request: %v", form.Type, err)
		s.renderTemplate(c, errors.HTTPStatus(err), "index.html", s.indexData(form, errors.UserMessage(err)))
		return
	}

	c.Redirect(http.StatusSeeOther, "/analyses/"+rn.ID.String())
}

// chartView is one image on the results page
type chartView struct {
	Title string
	URL   string
}

// analysisPage is the data behind the results page
type analysisPage struct {
	Title       string
	Run         app.Run
	Result      *app.AnalysisResult
	Populations []variant.Population
	Charts      []chartView
	Done        bool
	Failed      bool
}

func (s *Server) handleAnalysis(c *gin.Context) {
	rn, ok := s.lookupRun(c)
	if !ok {
		return
	}

	page := analysisPage{
		Title:       "Analysis " + rn.ID.String(),
		Run:         rn,
		Result:      rn.Result,
		Populations: rn.Request.Populations,
		Done:        rn.Status == run.StatusComplete,
		Failed:      rn.Status == run.StatusFailed,
	}
	if rn.Result != nil {
		for _, artifact := range rn.Result.Charts {
			page.Charts = append(page.Charts, chartView{
				Title: chartTitle(artifact.Name, rn.Request.Focus),
				URL:   fmt.Sprintf("/analyses/%s/charts/%s", rn.ID, artifact.Name),
			})
		}
	}
	s.renderTemplate(c, http.StatusOK, "analysis.html", page)
}

func chartTitle(name string, focus variant.Population) string {
	switch name {
	case charts.ClinicalSignificanceFile:
		return "Clinical Significance Distribution"
	case charts.AlleleFrequencyFile:
		return "Allele Frequency Comparison"
	case charts.FocusFile(focus):
		return "Top Variants in " + focus.Label() + " Population"
	default:
		return name
	}
}

func (s *Server) handleChart(c *gin.Context) {
	rn, ok := s.lookupRun(c)
	if !ok {
		return
	}
	if rn.Result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis has no charts yet"})
		return
	}
	artifact, ok := rn.Result.Chart(c.Param("file"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "chart not found"})
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", artifact.Data)
}

func (s *Server) handleExport(c *gin.Context) {
	rn, ok := s.lookupRun(c)
	if !ok {
		return
	}
	if rn.Result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis has no results yet"})
		return
	}

	var buf bytes.Buffer
	if err := rn.Result.Workbook().Write(&buf); err != nil {
		log.Printf("[handleExport] failed to build workbook for %s: %v", rn.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build spreadsheet"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="variants-%s.xlsx"`, rn.ID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// lookupRun resolves :id, writing the error page when it cannot
func (s *Server) lookupRun(c *gin.Context) (app.Run, bool) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, "Invalid analysis id")
		return app.Run{}, false
	}
	rn, err := s.runner.Get(id)
	if err != nil {
		s.renderError(c, errors.HTTPStatus(err), "This analysis no longer exists. Older results are discarded as new ones are run.")
		return app.Run{}, false
	}
	return rn, true
}
