package charts

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/sync/errgroup"

	"varexplorer/domain/variant"
	"varexplorer/internal"
	"varexplorer/internal/analysis"
)

// Artifact file names
const (
	ClinicalSignificanceFile = "clinical_significance.png"
	AlleleFrequencyFile      = "allele_frequencies.png"
)

// FocusFile names the focus table image for pop
func FocusFile(pop variant.Population) string {
	return fmt.Sprintf("top_%s_variants.png", strings.ToLower(string(pop)))
}

// NoDataText is drawn on charts with nothing to plot
const NoDataText = "No data available"

var (
	barColor = drawing.ColorFromHex("87ceeb")

	populationColors = map[variant.Population]drawing.Color{
		variant.PopulationSAS: drawing.ColorFromHex("1f77b4"),
		variant.PopulationAFR: drawing.ColorFromHex("ff7f0e"),
		variant.PopulationEUR: drawing.ColorFromHex("2ca02c"),
		variant.PopulationAMR: drawing.ColorFromHex("d62728"),
		variant.PopulationEAS: drawing.ColorFromHex("9467bd"),
	}
)

// Artifact is one rendered PNG
type Artifact struct {
	Name string
	Data []byte
}

// Config sizes the rendered images
type Config struct {
	Width  int
	Height int
}

// DefaultConfig matches the 12x6 inch figures of the notebook plots at 100 dpi
func DefaultConfig() Config {
	return Config{Width: 1200, Height: 600}
}

// Renderer draws analysis summaries to PNG
type Renderer struct {
	config Config
	logger *internal.Logger
}

// NewRenderer creates a renderer. Non-positive sizes fall back to the defaults.
func NewRenderer(config Config) *Renderer {
	defaults := DefaultConfig()
	if config.Width <= 0 {
		config.Width = defaults.Width
	}
	if config.Height <= 0 {
		config.Height = defaults.Height
	}
	return &Renderer{
		config: config,
		logger: internal.DefaultLogger.Named("charts"),
	}
}

// RenderAll renders the three artifacts concurrently. The result is ordered
// clinical significance, allele frequencies, focus table.
func (r *Renderer) RenderAll(ctx context.Context, summary *analysis.Summary) ([]Artifact, error) {
	artifacts := make([]Artifact, 3)
	g, ctx := errgroup.WithContext(ctx)

	jobs := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{ClinicalSignificanceFile, func() ([]byte, error) { return r.ClinicalSignificance(summary.ClinicalSignificance) }},
		{AlleleFrequencyFile, func() ([]byte, error) { return r.AlleleFrequencies(summary.TopVariants, summary.Populations) }},
		{FocusFile(summary.Focus), func() ([]byte, error) {
			return r.FocusTable(summary.TopFocus, summary.Focus, summary.TopFocusLimit)
		}},
	}

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := job.render()
			if err != nil {
				return fmt.Errorf("render %s: %w", job.name, err)
			}
			artifacts[i] = Artifact{Name: job.name, Data: data}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.logger.Debug("rendered %d charts", len(artifacts))
	return artifacts, nil
}

// WriteDir writes artifacts into dir, creating it when missing
func WriteDir(dir string, artifacts []Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plots directory: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path := filepath.Join(dir, a.Name)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ClinicalSignificance draws one bar per significance term, labelled with
// its count.
func (r *Renderer) ClinicalSignificance(counts []analysis.CategoryCount) ([]byte, error) {
	if len(counts) == 0 {
		return r.Placeholder("Number of Variants by Clinical Significance")
	}

	bars := make([]chart.Value, 0, len(counts))
	values := make([]float64, 0, len(counts))
	for _, c := range counts {
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s (%d)", c.Category, c.Count),
			Value: float64(c.Count),
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		})
		values = append(values, float64(c.Count))
	}

	bc := r.barChart("Number of Variants by Clinical Significance", bars, values, true)
	bc.YAxis.Name = "Count"
	return renderBarChart(bc)
}

// AlleleFrequencies draws grouped bars: one group per variant, one bar per
// selected population, followed by a legend.
func (r *Renderer) AlleleFrequencies(rows []analysis.FrequencyRow, pops []variant.Population) ([]byte, error) {
	title := "Allele Frequencies of Top Variants Across Populations"
	if len(rows) == 0 || len(pops) == 0 {
		return r.Placeholder(title)
	}

	bars := make([]chart.Value, 0, len(rows)*(len(pops)+1))
	values := make([]float64, 0, len(rows)*len(pops))
	for i, row := range rows {
		if i > 0 {
			bars = append(bars, chart.Value{Label: " ", Value: 0, Style: chart.Style{FillColor: drawing.ColorTransparent, StrokeColor: drawing.ColorTransparent}})
		}
		for j, p := range pops {
			label := " "
			if j == 0 {
				label = string(row.RsID)
			}
			f := row.Values[p]
			color := populationColors[p]
			bars = append(bars, chart.Value{
				Label: label,
				Value: f,
				Style: chart.Style{FillColor: color, StrokeColor: color},
			})
			values = append(values, f)
		}
	}

	bc := r.barChart(title, bars, values, false)
	bc.YAxis.Name = "Allele Frequency"
	bc.BarSpacing = 2
	data, err := renderBarChart(bc)
	if err != nil {
		return nil, err
	}
	return drawLegend(data, legendEntries(pops))
}

// barChart lays out a bar chart with 45 degree x labels. The padding is sized
// from the longest label so rotated text stays inside the image. Counts get
// whole-number ticks.
func (r *Renderer) barChart(title string, bars []chart.Value, values []float64, counts bool) chart.BarChart {
	top, err := stats.Max(values)
	if err != nil || top <= 0 {
		top = 1
	}
	ticks := niceTicks(top*1.05, yTickCount, counts)

	labels := make([]string, 0, len(bars))
	for _, b := range bars {
		labels = append(labels, b.Label)
	}

	return chart.BarChart{
		Title:      title,
		Width:      r.config.Width,
		Height:     r.config.Height,
		Background: chart.Style{Padding: r.labelPadding(labels)},
		XAxis:      chart.Style{TextRotationDegrees: labelRotation, TextWrap: chart.TextWrapNone},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: ticks[len(ticks)-1].Value},
			Ticks: ticks,
		},
		BarWidth: barWidth(r.config.Width, len(bars)),
		Bars:     bars,
	}
}

const (
	labelRotation = 45.0
	yTickCount    = 6
	minPadBottom  = 28
	minPadSide    = 16
)

// labelPadding reserves room below the plot for the rotated x labels and on
// both sides for the labels of the outer bars.
func (r *Renderer) labelPadding(labels []string) chart.Box {
	extent := labelExtent(labels)

	bottom := extent + chart.DefaultXAxisMargin + 12
	bottom = max(bottom, minPadBottom)
	bottom = min(bottom, r.config.Height/2)

	side := max(extent/2, minPadSide)
	side = min(side, r.config.Width/4)

	return chart.Box{Top: 48, Left: side, Right: side, Bottom: bottom}
}

// labelExtent is the height of the tallest label once rotated, measured with
// the font and size the x axis is drawn with.
func labelExtent(labels []string) int {
	longest := 0
	for _, l := range labels {
		longest = max(longest, len(strings.TrimSpace(l)))
	}
	if longest == 0 {
		return 0
	}

	sin := math.Sin(labelRotation * math.Pi / 180)
	rr, err := chart.PNG(1, 1)
	font, ferr := chart.GetDefaultFont()
	if err != nil || ferr != nil {
		// roughly 7px per glyph at the default axis size
		return int(math.Ceil(float64(longest*7+12) * sin))
	}
	rr.SetDPI(chart.DefaultDPI)
	rr.SetFont(font)
	rr.SetFontSize(chart.DefaultAxisFontSize)

	extent := 0
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			continue
		}
		box := rr.MeasureText(l)
		extent = max(extent, int(math.Ceil(float64(box.Width()+box.Height())*sin)))
	}
	return extent
}

// niceTicks spaces about n ticks from zero to at least top on a 1, 2, 2.5, 5
// step. With whole set the step is an integer so count axes never repeat a
// label.
func niceTicks(top float64, n int, whole bool) []chart.Tick {
	if n < 2 {
		n = 2
	}
	if math.IsNaN(top) || math.IsInf(top, 0) || top <= 0 {
		top = 1
	}

	mag := math.Pow(10, math.Floor(math.Log10(top/float64(n-1))))
	if whole && mag < 1 {
		mag = 1
	}
	step, bestScore := mag, math.MaxFloat64
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		s := c * mag
		if whole && s != math.Round(s) {
			continue
		}
		count := math.Max(math.Ceil(top/s), 2)
		if score := math.Abs(count - float64(n)); score < bestScore {
			step, bestScore = s, score
		}
	}

	decimals := tickDecimals(step)
	var ticks []chart.Tick
	for i := 0; ; i++ {
		v := float64(i) * step
		ticks = append(ticks, chart.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', decimals, 64)})
		if v >= top-step*1e-9 {
			break
		}
	}
	return ticks
}

// tickDecimals is the fewest decimals that print step exactly
func tickDecimals(step float64) int {
	for d := 0; d < 8; d++ {
		scaled := step * math.Pow(10, float64(d))
		if math.Abs(scaled-math.Round(scaled)) < 1e-9*math.Max(1, scaled) {
			return d
		}
	}
	return 8
}

func renderBarChart(bc chart.BarChart) ([]byte, error) {
	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// barWidth fits n bars into the plot width with a floor of 4px
func barWidth(width, n int) int {
	if n <= 0 {
		return 40
	}
	w := (width - 120) / (n * 2)
	switch {
	case w < 4:
		return 4
	case w > 60:
		return 60
	default:
		return w
	}
}

type legendEntry struct {
	Label string
	Color drawing.Color
}

func legendEntries(pops []variant.Population) []legendEntry {
	sorted := append([]variant.Population(nil), pops...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return indexOf(variant.AllPopulations, sorted[i]) < indexOf(variant.AllPopulations, sorted[j])
	})
	entries := make([]legendEntry, 0, len(sorted))
	for _, p := range sorted {
		entries = append(entries, legendEntry{Label: string(p), Color: populationColors[p]})
	}
	return entries
}

func indexOf(pops []variant.Population, p variant.Population) int {
	for i, q := range pops {
		if q == p {
			return i
		}
	}
	return len(pops)
}
