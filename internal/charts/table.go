package charts

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"varexplorer/domain/variant"
	"varexplorer/internal/analysis"
)

const (
	cellPadX   = 12
	rowHeight  = 28
	titleSpace = 48
	margin     = 24
)

var (
	face        = basicfont.Face7x13
	textColor   = color.RGBA{R: 33, G: 33, B: 33, A: 255}
	headerFill  = color.RGBA{R: 220, G: 230, B: 241, A: 255}
	stripeFill  = color.RGBA{R: 247, G: 247, B: 247, A: 255}
	borderColor = color.RGBA{R: 190, G: 190, B: 190, A: 255}
)

// FocusTable draws the focus population rows as a table image
func (r *Renderer) FocusTable(rows []analysis.FocusRow, pop variant.Population, n int) ([]byte, error) {
	if n <= 0 {
		n = analysis.DefaultTopFocus
	}
	title := fmt.Sprintf("Top %d Variants by %s (%s) Frequency", n, pop.Label(), pop)
	if len(rows) == 0 {
		return r.Placeholder(title)
	}

	header := []string{"rsID", fmt.Sprintf("%s Frequency", pop), "Clinical Significance", "Consequence"}
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, []string{
			string(row.RsID),
			strconv.FormatFloat(row.Frequency, 'g', 4, 64),
			row.ClinicalSignificance,
			row.Consequence,
		})
	}
	return encodePNG(drawTable(title, header, cells))
}

// Placeholder renders a blank canvas carrying the title and NoDataText
func (r *Renderer) Placeholder(title string) ([]byte, error) {
	img := newCanvas(r.config.Width, r.config.Height)
	b := img.Bounds()
	drawCentered(img, title, b.Dx()/2, titleSpace/2+face.Metrics().Ascent.Ceil()/2)
	drawCentered(img, NoDataText, b.Dx()/2, b.Dy()/2)
	return encodePNG(img)
}

func drawTable(title string, header []string, rows [][]string) *image.RGBA {
	widths := make([]int, len(header))
	measure := func(cols []string) {
		for i, text := range cols {
			if w := textWidth(text) + 2*cellPadX; w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}

	tableWidth := 0
	for _, w := range widths {
		tableWidth += w
	}
	width := max(tableWidth+2*margin, textWidth(title)+2*margin)
	height := titleSpace + rowHeight*(len(rows)+1) + margin

	img := newCanvas(width, height)
	drawCentered(img, title, width/2, titleSpace/2+face.Metrics().Ascent.Ceil()/2)

	left := (width - tableWidth) / 2
	drawRow := func(y int, cols []string, fill color.Color) {
		if fill != nil {
			draw.Draw(img, image.Rect(left, y, left+tableWidth, y+rowHeight), image.NewUniform(fill), image.Point{}, draw.Src)
		}
		x := left
		for i, text := range cols {
			drawText(img, text, x+cellPadX, y+rowHeight/2+face.Metrics().Ascent.Ceil()/2-1)
			x += widths[i]
		}
		hline(img, left, left+tableWidth, y+rowHeight)
	}

	y := titleSpace
	hline(img, left, left+tableWidth, y)
	drawRow(y, header, headerFill)
	for i, row := range rows {
		y += rowHeight
		var fill color.Color
		if i%2 == 1 {
			fill = stripeFill
		}
		drawRow(y, row, fill)
	}

	x := left
	bottom := titleSpace + rowHeight*(len(rows)+1)
	for _, w := range widths {
		vline(img, x, titleSpace, bottom)
		x += w
	}
	vline(img, x, titleSpace, bottom)
	return img
}

// drawLegend appends a legend strip to the top-right corner of a PNG
func drawLegend(data []byte, entries []legendEntry) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode chart: %w", err)
	}
	b := src.Bounds()
	img := image.NewRGBA(b)
	draw.Draw(img, b, src, b.Min, draw.Src)

	const swatch = 12
	const pad = 8
	boxWidth := 0
	for _, e := range entries {
		boxWidth = max(boxWidth, swatch+pad+textWidth(e.Label))
	}
	boxWidth += 2 * pad
	boxHeight := len(entries)*(swatch+pad) + pad

	x0 := b.Max.X - boxWidth - margin
	y0 := b.Min.Y + titleSpace
	draw.Draw(img, image.Rect(x0, y0, x0+boxWidth, y0+boxHeight), image.NewUniform(color.White), image.Point{}, draw.Src)
	hline(img, x0, x0+boxWidth, y0)
	hline(img, x0, x0+boxWidth, y0+boxHeight)
	vline(img, x0, y0, y0+boxHeight)
	vline(img, x0+boxWidth, y0, y0+boxHeight)

	y := y0 + pad
	for _, e := range entries {
		sw := image.Rect(x0+pad, y, x0+pad+swatch, y+swatch)
		draw.Draw(img, sw, image.NewUniform(toRGBA(e.Color)), image.Point{}, draw.Src)
		drawText(img, e.Label, x0+2*pad+swatch, y+swatch-1)
		y += swatch + pad
	}
	return encodePNG(img)
}

func newCanvas(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func textWidth(text string) int {
	return font.MeasureString(face, text).Ceil()
}

func drawText(img *image.RGBA, text string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawCentered(img *image.RGBA, text string, cx, y int) {
	drawText(img, text, cx-textWidth(text)/2, y)
}

func hline(img *image.RGBA, x0, x1, y int) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y, borderColor)
	}
}

func vline(img *image.RGBA, x, y0, y1 int) {
	for y := y0; y <= y1; y++ {
		img.Set(x, y, borderColor)
	}
}

func toRGBA(c drawing.Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
