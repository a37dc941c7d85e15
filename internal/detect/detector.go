// Package detect finds plate-shaped candidate regions with classical geometry.
package detect

import (
	"image"
	"log/slog"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
	"github.com/joseph-ayodele/plates-tracker/internal/imageproc"
)

// Config holds the geometric filter. Bounds are exclusive for the aspect ratio
// and inclusive for the area.
type Config struct {
	MaxWidth   int
	MinArea    float64
	MaxArea    float64
	MinAspect  float64
	MaxAspect  float64
	Confidence float64
}

// DefaultConfig returns the plate filter: area in [500, 50000] px and
// aspect ratio strictly between 3 and 6.
func DefaultConfig() Config {
	return Config{
		MaxWidth:   imageproc.DefaultMaxWidth,
		MinArea:    500,
		MaxArea:    50000,
		MinAspect:  3.0,
		MaxAspect:  6.0,
		Confidence: 0.7,
	}
}

// shape is an external contour reduced to what the geometric filter reads.
type shape struct {
	area float64
	rect entity.Rect
}

type Detector struct {
	cfg    Config
	logger *slog.Logger
}

func NewDetector(cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = def.MaxWidth
	}
	if cfg.MaxArea <= 0 {
		cfg.MinArea, cfg.MaxArea = def.MinArea, def.MaxArea
	}
	if cfg.MaxAspect <= 0 {
		cfg.MinAspect, cfg.MaxAspect = def.MinAspect, def.MaxAspect
	}
	if cfg.Confidence <= 0 {
		cfg.Confidence = def.Confidence
	}
	return &Detector{cfg: cfg, logger: logger}
}

// AcceptGeometry applies the area and aspect-ratio filter.
func (d *Detector) AcceptGeometry(area float64, w, h int) bool {
	if area < d.cfg.MinArea || area > d.cfg.MaxArea {
		return false
	}
	if h <= 0 {
		return false
	}
	aspect := float64(w) / float64(h)
	return aspect > d.cfg.MinAspect && aspect < d.cfg.MaxAspect
}

// FindRegions returns plate-shaped regions of img, in the coordinates of img
// scaled to the working width. An empty result is not an error.
func (d *Detector) FindRegions(img image.Image) []entity.CandidateRegion {
	work := imageproc.Resize(img, d.cfg.MaxWidth)
	opts := imageproc.DefaultOptions()
	opts.MaxWidth = d.cfg.MaxWidth
	gray := imageproc.ToGray(imageproc.Preprocess(work, opts))

	level, shapes := segment(gray)

	var regions []entity.CandidateRegion
	for _, s := range shapes {
		if !d.AcceptGeometry(s.area, s.rect.Width(), s.rect.Height()) {
			continue
		}
		regions = append(regions, entity.CandidateRegion{
			Rect:       s.rect,
			ROI:        imageproc.Crop(work, s.rect),
			Area:       s.area,
			Confidence: d.cfg.Confidence,
		})
	}

	d.logger.Debug("detect.regions",
		"backend", Backend,
		"threshold", level,
		"contours", len(shapes),
		"regions", len(regions),
	)
	return regions
}
