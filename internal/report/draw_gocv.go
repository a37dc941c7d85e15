//go:build gocv

package report

import (
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"

	"gocv.io/x/gocv"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

const (
	cvFont      = gocv.FontHersheySimplex
	cvFontScale = 0.5
)

// drawRecords outlines and labels records with OpenCV primitives, drawing
// into dst in place.
func drawRecords(dst *image.RGBA, records []entity.PlateRecord) {
	if len(records) == 0 {
		return
	}
	mat, err := gocv.ImageToMatRGBA(dst)
	if err != nil {
		slog.Default().Warn("report.gocv.mat_failed", "error", err)
		drawRecordsPure(dst, records)
		return
	}
	defer mat.Close()

	for _, rec := range records {
		c := BandColor(rec.Confidence)
		pts := make([]image.Point, 0, len(rec.Polygon))
		for _, p := range rec.Polygon {
			pts = append(pts, image.Pt(int(math.Round(p.X)), int(math.Round(p.Y))))
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
		gocv.Polylines(&mat, pv, true, c, strokeWidth)
		pv.Close()
		putLabel(&mat, rec.Bounds(), Label(rec), c)
	}

	img, err := mat.ToImage()
	if err != nil {
		slog.Default().Warn("report.gocv.image_failed", "error", err)
		drawRecordsPure(dst, records)
		return
	}
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
}

// putLabel places text on a filled box above the top-left of bounds, or
// inside it when there is no room above.
func putLabel(mat *gocv.Mat, bounds entity.Rect, text string, bg color.RGBA) {
	size := gocv.GetTextSize(text, cvFont, cvFontScale, 1)
	width := size.X + 2*labelPad
	height := size.Y + 2*labelPad

	top := bounds.YMin - height
	if top < 0 {
		top = bounds.YMin
	}
	box := image.Rect(bounds.XMin, top, bounds.XMin+width, top+height)
	gocv.Rectangle(mat, box, bg, -1)
	gocv.PutText(mat, text, image.Pt(box.Min.X+labelPad, box.Max.Y-labelPad), cvFont, cvFontScale, colorLabel, 1)
}
