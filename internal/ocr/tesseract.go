package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// TesseractReader shells out to the tesseract CLI in TSV mode and groups
// word boxes into lines. Each Read uses its own temp directory, so one
// reader may serve concurrent callers.
type TesseractReader struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseractReader(cfg Config, runner Runner, logger *slog.Logger) *TesseractReader {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &TesseractReader{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

func (t *TesseractReader) Read(ctx context.Context, img image.Image) ([]entity.Observation, error) {
	tmpDir, err := os.MkdirTemp("", "pt-ocr-*")
	if err != nil {
		return nil, common.OCRFailure(EngineTesseract, err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "roi.png")
	if err := imaging.Save(img, in); err != nil {
		return nil, common.OCRFailure(EngineTesseract, fmt.Errorf("write roi: %w", err))
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, t.logger, t.args(in)...)
	if err != nil {
		return nil, common.OCRFailure(EngineTesseract, fmt.Errorf("tesseract TSV: %w: %s", err, truncate(string(errb), 512)))
	}

	obs := ParseTSV(out)
	t.logger.Debug("tesseract read",
		"lines", len(obs),
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)
	return obs, nil
}

// tesseract <file> stdout -l <lang> [--psm n] [--tessdata-dir d] [-c whitelist] tsv
func (t *TesseractReader) args(in string) []string {
	args := []string{in, "stdout", "-l", t.cfg.Lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	if t.cfg.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+t.cfg.Whitelist)
	}
	return append(args, "tsv")
}

type lineKey struct{ page, block, par, line int }

type lineAcc struct {
	words []string
	confs []float64
	box   image.Rectangle
}

// ParseTSV turns tesseract TSV output into one observation per text line.
// Line confidence is the mean word confidence scaled to [0,1].
func ParseTSV(tsv []byte) []entity.Observation {
	lines := strings.Split(string(tsv), "\n")

	var order []lineKey
	acc := map[lineKey]*lineAcc{}
	for i, ln := range lines {
		if i == 0 || len(strings.TrimSpace(ln)) == 0 {
			continue
		} // skip header
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" { // word level
			continue
		}
		text := strings.TrimSpace(cols[11])
		conf, err := strconv.ParseFloat(cols[10], 64)
		if text == "" || err != nil || conf < 0 {
			continue
		}
		n := make([]int, 10)
		ok := true
		for j := 0; j < 10; j++ {
			if n[j], err = strconv.Atoi(cols[j]); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		key := lineKey{page: n[1], block: n[2], par: n[3], line: n[4]}
		box := image.Rect(n[6], n[7], n[6]+n[8], n[7]+n[9])

		a, seen := acc[key]
		if !seen {
			a = &lineAcc{box: box}
			acc[key] = a
			order = append(order, key)
		}
		a.words = append(a.words, text)
		a.confs = append(a.confs, conf)
		a.box = a.box.Union(box)
	}

	out := make([]entity.Observation, 0, len(order))
	for _, k := range order {
		a := acc[k]
		var sum float64
		for _, c := range a.confs {
			sum += c
		}
		conf := sum / float64(len(a.confs)) / 100
		if conf > 1 {
			conf = 1
		}
		out = append(out, entity.Observation{
			Polygon:    entity.QuadFromRect(entity.Rect{XMin: a.box.Min.X, YMin: a.box.Min.Y, XMax: a.box.Max.X, YMax: a.box.Max.Y}),
			Text:       strings.Join(a.words, " "),
			Confidence: conf,
		})
	}
	return out
}
