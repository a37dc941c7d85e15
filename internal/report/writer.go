package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/plates-tracker/constants"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

const (
	jpegQuality = 92
	ruleWide    = 60
	ruleNarrow  = 40
)

// Uploader copies a written artifact somewhere else, keyed by its relative path.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// Input is everything the writer needs for one source image. Err marks a
// load failure; Image and Records are ignored when it is set.
type Input struct {
	SourcePath string
	Image      image.Image
	Records    []entity.PlateRecord
	Timestamp  time.Time
	Err        error
}

// Outputs lists the files written for one Input.
type Outputs struct {
	Annotated string   `json:"annotated,omitempty"`
	Crops     []string `json:"crops,omitempty"`
	Text      string   `json:"text"`
	CSV       string   `json:"csv,omitempty"`
}

// All returns every written path.
func (o Outputs) All() []string {
	var out []string
	if o.Annotated != "" {
		out = append(out, o.Annotated)
	}
	out = append(out, o.Crops...)
	if o.Text != "" {
		out = append(out, o.Text)
	}
	if o.CSV != "" {
		out = append(out, o.CSV)
	}
	return out
}

// Writer lays files out as {dir}/results and {dir}/reports.
type Writer struct {
	dir      string
	uploader Uploader
	logger   *slog.Logger
}

func NewWriter(dir string, uploader Uploader, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, sub := range []string{constants.ResultsDir, constants.ReportsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	return &Writer{dir: dir, uploader: uploader, logger: logger}, nil
}

func (w *Writer) ResultsDir() string { return filepath.Join(w.dir, constants.ResultsDir) }
func (w *Writer) ReportsDir() string { return filepath.Join(w.dir, constants.ReportsDir) }

// Write renders every artifact for in. A load error only produces the text report.
func (w *Writer) Write(ctx context.Context, in Input) (Outputs, error) {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	base := BaseName(in.SourcePath)
	ts := in.Timestamp.Format(constants.TimestampLayout)
	var out Outputs

	if in.Err == nil && in.Image != nil {
		out.Annotated = filepath.Join(w.ResultsDir(), fmt.Sprintf("%s_result_%s.jpg", base, ts))
		if err := imaging.Save(Annotate(in.Image, in.Records), out.Annotated, imaging.JPEGQuality(jpegQuality)); err != nil {
			return out, fmt.Errorf("save annotated image: %w", err)
		}
		for i, rec := range in.Records {
			crop := CropPlate(in.Image, rec)
			if crop == nil {
				continue
			}
			p := filepath.Join(w.ResultsDir(), fmt.Sprintf("%s_plate_%d_%s.jpg", base, i+1, ts))
			if err := imaging.Save(crop, p, imaging.JPEGQuality(jpegQuality)); err != nil {
				return out, fmt.Errorf("save plate crop: %w", err)
			}
			out.Crops = append(out.Crops, p)
		}
	}

	out.Text = filepath.Join(w.ReportsDir(), fmt.Sprintf("%s_report_%s.txt", base, ts))
	if err := writeFile(out.Text, func(f io.Writer) error { return WriteText(f, in) }); err != nil {
		return out, err
	}

	if in.Err == nil {
		out.CSV = filepath.Join(w.ReportsDir(), fmt.Sprintf("%s_data_%s.csv", base, ts))
		if err := writeFile(out.CSV, func(f io.Writer) error { return WriteCSV(f, in) }); err != nil {
			return out, err
		}
	}

	w.logger.Info("report.written",
		"file", filepath.Base(in.SourcePath),
		"plates", len(in.Records),
		"outputs", len(out.All()),
	)
	w.upload(ctx, out)
	return out, nil
}

// upload is best effort; failures are logged.
func (w *Writer) upload(ctx context.Context, out Outputs) {
	if w.uploader == nil {
		return
	}
	for _, p := range out.All() {
		key, err := filepath.Rel(w.dir, p)
		if err != nil {
			key = filepath.Base(p)
		}
		if err := w.uploader.Upload(ctx, p, filepath.ToSlash(key)); err != nil {
			w.logger.Warn("report.upload_failed", "path", p, "error", err)
		}
	}
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// BaseName strips directory and extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Percent formats a confidence as "93.5%".
func Percent(confidence float64) string {
	return strconv.FormatFloat(confidence*100, 'f', 1, 64) + "%"
}

// WriteText writes the human-readable report.
func WriteText(w io.Writer, in Input) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", ruleWide) + "\n")
	b.WriteString("PLATE RECOGNITION REPORT\n")
	b.WriteString(strings.Repeat("=", ruleWide) + "\n\n")
	fmt.Fprintf(&b, "Date: %s\n", in.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Source file: %s\n", filepath.Base(in.SourcePath))
	fmt.Fprintf(&b, "Path: %s\n", in.SourcePath)

	switch {
	case in.Err != nil:
		fmt.Fprintf(&b, "\nLOAD ERROR: %v\n", in.Err)
	case len(in.Records) == 0:
		b.WriteString("Plates detected: 0\n\nNO PLATES DETECTED\n")
	default:
		fmt.Fprintf(&b, "Plates detected: %d\n\n", len(in.Records))
		b.WriteString("PLATE DETAILS:\n")
		b.WriteString(strings.Repeat("-", ruleNarrow) + "\n")
		for i, rec := range in.Records {
			fmt.Fprintf(&b, "Plate %d:\n", i+1)
			fmt.Fprintf(&b, "  Text: %s\n", rec.Text)
			fmt.Fprintf(&b, "  Raw text: %s\n", rec.RawText)
			fmt.Fprintf(&b, "  Confidence: %s\n", Percent(rec.Confidence))
			fmt.Fprintf(&b, "  Format: %s\n", rec.Format)
			r := rec.Bounds()
			fmt.Fprintf(&b, "  Box: (%d, %d) - (%d, %d)\n", r.XMin, r.YMin, r.XMax, r.YMax)
			b.WriteString(strings.Repeat("-", ruleNarrow) + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// CSVHeader is the column order of the per-image CSV.
var CSVHeader = []string{
	"date", "file", "plate_id", "text", "confidence", "raw_text", "format",
	"x_min", "y_min", "x_max", "y_max",
}

// WriteCSV writes one row per record under CSVHeader.
func WriteCSV(w io.Writer, in Input) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	date := in.Timestamp.Format("2006-01-02 15:04:05")
	file := filepath.Base(in.SourcePath)
	for i, rec := range in.Records {
		r := rec.Bounds()
		row := []string{
			date,
			file,
			strconv.Itoa(i + 1),
			rec.Text,
			Percent(rec.Confidence),
			rec.RawText,
			rec.Format,
			strconv.Itoa(r.XMin),
			strconv.Itoa(r.YMin),
			strconv.Itoa(r.XMax),
			strconv.Itoa(r.YMax),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
