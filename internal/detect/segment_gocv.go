//go:build gocv

package detect

import (
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// Backend names the segmentation implementation compiled in.
const Backend = "gocv"

// segment runs Otsu thresholding and RETR_EXTERNAL contour extraction in
// OpenCV. It falls back to the pure Go path when g cannot be wrapped in a Mat.
func segment(g *image.Gray) (uint8, []shape) {
	src, err := gocv.ImageGrayToMatGray(g)
	if err != nil {
		slog.Default().Warn("detect.gocv.mat_failed", "error", err)
		return segmentPure(g)
	}
	defer src.Close()

	bin := gocv.NewMat()
	defer bin.Close()
	level := gocv.Threshold(src, &bin, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	shapes := make([]shape, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		r := gocv.BoundingRect(c)
		shapes = append(shapes, shape{
			area: gocv.ContourArea(c),
			rect: entity.Rect{XMin: r.Min.X, YMin: r.Min.Y, XMax: r.Max.X, YMax: r.Max.Y},
		})
	}
	return uint8(level), shapes
}
