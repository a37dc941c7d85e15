// Package recognize turns an image into ranked, validated plate records.
package recognize

import (
	"context"
	"image"
	"log/slog"
	"sort"
	"time"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/detect"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
	"github.com/joseph-ayodele/plates-tracker/internal/imageproc"
	"github.com/joseph-ayodele/plates-tracker/internal/ocr"
	"github.com/joseph-ayodele/plates-tracker/internal/plate"
)

// RegionFinder is the detector contract used by the Recognizer.
type RegionFinder interface {
	FindRegions(img image.Image) []entity.CandidateRegion
}

// Classifier is the validator contract used by the Recognizer.
type Classifier interface {
	Classify(text string) plate.MatchResult
}

type Config struct {
	MaxWidth      int
	MinConfidence float64 // records below are dropped; 0 keeps everything
	Dedup         bool    // drop repeated text whose boxes overlap
	DedupIoU      float64
}

// Result is one image's recognition outcome. Records are in Image's coordinates.
type Result struct {
	Records      []entity.PlateRecord
	Regions      int
	FallbackUsed bool
	Image        image.Image
	Duration     time.Duration
}

// Recognizer holds only construction-time configuration; it is safe for
// concurrent use when its Reader is.
type Recognizer struct {
	cfg       Config
	finder    RegionFinder
	reader    ocr.Reader
	validator Classifier
	logger    *slog.Logger
}

func NewRecognizer(cfg Config, finder RegionFinder, reader ocr.Reader, validator Classifier, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = imageproc.DefaultMaxWidth
	}
	if cfg.DedupIoU <= 0 {
		cfg.DedupIoU = 0.5
	}
	if finder == nil {
		finder = detect.NewDetector(detect.Config{MaxWidth: cfg.MaxWidth}, logger)
	}
	if validator == nil {
		validator = plate.NewValidator()
	}
	return &Recognizer{cfg: cfg, finder: finder, reader: reader, validator: validator, logger: logger}
}

// Recognize finds regions, reads each one, validates the text and ranks the
// records by confidence (ties keep discovery order). When no region yields a
// record the whole working image is read once more. OCR failures are logged
// and never returned; the only error is an empty input.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (Result, error) {
	start := time.Now()
	if img == nil || img.Bounds().Empty() {
		return Result{}, common.NewAppError(common.CodeInvalid, "empty image", common.ErrInvalidInput)
	}
	logger := common.LoggerFromContext(ctx, r.logger)

	work := imageproc.Resize(img, r.cfg.MaxWidth)
	regions := r.finder.FindRegions(work)
	res := Result{Regions: len(regions), Image: work}

	var records []entity.PlateRecord
	for i, reg := range regions {
		obs, err := r.reader.Read(ctx, reg.ROI)
		if err != nil {
			logger.Warn("recognize.region.ocr_failed", "region", i, "rect", reg.Rect, "error", err)
			continue
		}
		records = append(records, r.accept(logger, obs, float64(reg.Rect.XMin), float64(reg.Rect.YMin))...)
	}

	if len(records) == 0 {
		res.FallbackUsed = true
		obs, err := r.reader.Read(ctx, work)
		if err != nil {
			logger.Warn("recognize.fallback.ocr_failed", "error", err)
		} else {
			records = r.accept(logger, obs, 0, 0)
		}
	}

	records = r.filter(records)
	Rank(records)

	res.Records = records
	res.Duration = time.Since(start)
	logger.Info("recognize.done",
		"regions", res.Regions,
		"plates", len(records),
		"fallback", res.FallbackUsed,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// accept normalizes, validates and translates observations read at (dx, dy).
func (r *Recognizer) accept(logger *slog.Logger, obs []entity.Observation, dx, dy float64) []entity.PlateRecord {
	var out []entity.PlateRecord
	for _, o := range obs {
		text := plate.Normalize(o.Text)
		m := r.validator.Classify(text)
		if !m.Accepted {
			logger.Debug("recognize.rejected", "raw", o.Text, "text", text)
			continue
		}
		rec, err := entity.NewPlateRecord(text, o.Text, clamp01(o.Confidence), Translate(o.Polygon, dx, dy), m.Format)
		if err != nil {
			logger.Debug("recognize.invalid_record", "text", text, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (r *Recognizer) filter(records []entity.PlateRecord) []entity.PlateRecord {
	if r.cfg.MinConfidence > 0 {
		kept := records[:0]
		for _, rec := range records {
			if rec.Confidence >= r.cfg.MinConfidence {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	if r.cfg.Dedup {
		records = Dedup(records, r.cfg.DedupIoU)
	}
	return records
}

// Translate moves a region-local polygon into image-global coordinates.
func Translate(p entity.Polygon, dx, dy float64) entity.Polygon {
	return p.Translate(dx, dy)
}

// Rank sorts by confidence, highest first, keeping discovery order for ties.
func Rank(records []entity.PlateRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Confidence > records[j].Confidence
	})
}

// Dedup drops a record when an earlier one has the same text and a box
// overlapping it by at least iou. Order is preserved.
func Dedup(records []entity.PlateRecord, iou float64) []entity.PlateRecord {
	var out []entity.PlateRecord
	for _, rec := range records {
		dup := -1
		for i, kept := range out {
			if kept.Text == rec.Text && kept.Bounds().IoU(rec.Bounds()) >= iou {
				dup = i
				break
			}
		}
		switch {
		case dup < 0:
			out = append(out, rec)
		case rec.Confidence > out[dup].Confidence:
			out[dup] = rec
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
