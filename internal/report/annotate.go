// Package report renders recognition results as images, text, CSV and XLSX.
package report

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// CropMargin is the padding in pixels kept around each plate crop.
const CropMargin = 5

var (
	colorHigh   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	colorMedium = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	colorLow    = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	colorLabel  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const (
	strokeWidth = 3
	labelPad    = 3
)

// BandColor maps a confidence to green (> 0.8), orange (> 0.6) or red.
func BandColor(confidence float64) color.RGBA {
	switch {
	case confidence > 0.8:
		return colorHigh
	case confidence > 0.6:
		return colorMedium
	default:
		return colorLow
	}
}

// Label is the caption drawn next to a plate, e.g. "AB-234-CD (93%)".
func Label(rec entity.PlateRecord) string {
	return fmt.Sprintf("%s (%.0f%%)", rec.Text, rec.Confidence*100)
}

// Annotate returns a copy of img with every record outlined and labelled.
func Annotate(img image.Image, records []entity.PlateRecord) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	drawRecords(out, records)
	return out
}

func drawRecordsPure(dst *image.RGBA, records []entity.PlateRecord) {
	for _, rec := range records {
		c := BandColor(rec.Confidence)
		drawPolygon(dst, rec.Polygon, c)
		drawLabel(dst, rec.Bounds(), Label(rec), c)
	}
}

// CropPlate cuts the record's bounds plus CropMargin, clamped to img.
func CropPlate(img image.Image, rec entity.PlateRecord) image.Image {
	b := img.Bounds()
	r := rec.Bounds().Expand(CropMargin, image.Rect(0, 0, b.Dx(), b.Dy()))
	if r.Width() <= 0 || r.Height() <= 0 {
		return nil
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Width(), r.Height()))
	draw.Draw(out, out.Bounds(), img, image.Pt(b.Min.X+r.XMin, b.Min.Y+r.YMin), draw.Src)
	return out
}

func drawPolygon(dst *image.RGBA, p entity.Polygon, c color.RGBA) {
	n := len(p)
	for i := 0; i < n; i++ {
		a, b := p[i], p[(i+1)%n]
		drawLine(dst, int(math.Round(a.X)), int(math.Round(a.Y)), int(math.Round(b.X)), int(math.Round(b.Y)), c)
	}
}

// drawLine is Bresenham with a square pen of strokeWidth pixels.
func drawLine(dst *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		pen(dst, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func pen(dst *image.RGBA, x, y int, c color.RGBA) {
	half := strokeWidth / 2
	r := image.Rect(x-half, y-half, x-half+strokeWidth, y-half+strokeWidth).Intersect(dst.Bounds())
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// drawLabel puts text on a filled box just above the top-left of bounds,
// or inside the box when there is no room above.
func drawLabel(dst *image.RGBA, bounds entity.Rect, text string, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 2*labelPad
	height := face.Metrics().Height.Ceil() + 2*labelPad

	top := bounds.YMin - height
	if top < 0 {
		top = bounds.YMin
	}
	box := image.Rect(bounds.XMin, top, bounds.XMin+width, top+height).Intersect(dst.Bounds())
	if box.Empty() {
		return
	}
	draw.Draw(dst, box, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(colorLabel),
		Face: face,
		Dot:  fixed.P(box.Min.X+labelPad, box.Min.Y+labelPad+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
