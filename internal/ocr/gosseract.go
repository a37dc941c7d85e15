//go:build gosseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// GosseractReader drives libtesseract in-process. The client is not safe
// for concurrent use, so calls are serialized; use a Pool for parallelism.
type GosseractReader struct {
	mu     sync.Mutex
	client *gosseract.Client
	logger *slog.Logger
}

func NewGosseractReader(cfg Config, logger *slog.Logger) (Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	client := gosseract.NewClient()
	if cfg.TessdataDir != "" {
		client.TessdataPrefix = cfg.TessdataDir
	}
	if err := client.SetLanguage(cfg.Lang); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set language: %w", err)
	}
	if cfg.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PSM)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set psm: %w", err)
		}
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	logger.Info("gosseract client ready", "version", client.Version(), "lang", cfg.Lang)
	return &GosseractReader{client: client, logger: logger}, nil
}

func (g *GosseractReader) Read(ctx context.Context, img image.Image) ([]entity.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.OCRFailure(EngineGosseract, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, common.OCRFailure(EngineGosseract, fmt.Errorf("encode roi: %w", err))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, common.OCRFailure(EngineGosseract, err)
	}
	boxes, err := g.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, common.OCRFailure(EngineGosseract, err)
	}

	out := make([]entity.Observation, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		out = append(out, entity.Observation{
			Polygon: entity.QuadFromRect(entity.Rect{
				XMin: b.Box.Min.X, YMin: b.Box.Min.Y, XMax: b.Box.Max.X, YMax: b.Box.Max.Y,
			}),
			Text:       b.Word,
			Confidence: b.Confidence / 100,
		})
	}
	return out, nil
}

// Close releases the native client.
func (g *GosseractReader) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client.Close()
}
