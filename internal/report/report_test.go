package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/plates-tracker/constants"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

func record(t *testing.T, text string, conf float64, r entity.Rect) entity.PlateRecord {
	t.Helper()
	rec, err := entity.NewPlateRecord(text, strings.ToLower(text), conf, entity.QuadFromRect(r), constants.FormatFRDash)
	if err != nil {
		t.Fatalf("NewPlateRecord: %v", err)
	}
	return rec
}

func grayImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

func TestBandColor(t *testing.T) {
	tests := []struct {
		conf float64
		want color.RGBA
	}{
		{0.95, colorHigh},
		{0.81, colorHigh},
		{0.8, colorMedium},
		{0.61, colorMedium},
		{0.6, colorLow},
		{0.1, colorLow},
	}
	for _, tt := range tests {
		if got := BandColor(tt.conf); got != tt.want {
			t.Errorf("BandColor(%v) = %v, want %v", tt.conf, got, tt.want)
		}
	}
}

func TestLabelAndPercent(t *testing.T) {
	rec := record(t, "AB-234-CD", 0.934, entity.RectFromXYWH(0, 0, 10, 10))
	if got := Label(rec); got != "AB-234-CD (93%)" {
		t.Fatalf("Label = %q", got)
	}
	if got := Percent(0.934); got != "93.4%" {
		t.Fatalf("Percent = %q", got)
	}
}

func TestAnnotate_DrawsOutlineWithoutMutatingInput(t *testing.T) {
	src := grayImage(200, 100)
	rec := record(t, "AB-234-CD", 0.9, entity.RectFromXYWH(50, 40, 100, 30))

	out := Annotate(src, []entity.PlateRecord{rec})
	if out.Bounds() != src.Bounds() {
		t.Fatalf("bounds changed: %v", out.Bounds())
	}
	if got := out.RGBAAt(100, 70); got != colorHigh {
		t.Fatalf("bottom edge pixel = %v, want %v", got, colorHigh)
	}
	if got := out.RGBAAt(100, 55); got.R != 128 {
		t.Fatalf("interior pixel changed: %v", got)
	}
	if r, _, _, _ := src.At(100, 70).RGBA(); r>>8 != 128 {
		t.Fatal("source image was mutated")
	}
}

func TestCropPlate_ClampsMargin(t *testing.T) {
	src := grayImage(200, 100)
	inner := record(t, "AB-234-CD", 0.9, entity.RectFromXYWH(50, 40, 100, 30))
	if b := CropPlate(src, inner).Bounds(); b.Dx() != 110 || b.Dy() != 40 {
		t.Fatalf("inner crop = %v, want 110x40", b)
	}
	edge := record(t, "AB-234-CD", 0.9, entity.RectFromXYWH(2, 0, 100, 30))
	if b := CropPlate(src, edge).Bounds(); b.Dx() != 107 || b.Dy() != 35 {
		t.Fatalf("edge crop = %v, want 107x35", b)
	}
}

type recordingUploader struct {
	mu   sync.Mutex
	keys []string
}

func (u *recordingUploader) Upload(_ context.Context, localPath, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	u.keys = append(u.keys, key)
	return nil
}

func TestWriter_WritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	w, err := NewWriter(dir, up, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	ts := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	in := Input{
		SourcePath: "/data/in/car.front.jpg",
		Image:      grayImage(400, 200),
		Records: []entity.PlateRecord{
			record(t, "AB-234-CD", 0.9, entity.RectFromXYWH(10, 20, 120, 30)),
			record(t, "XY-967-ZT", 0.5, entity.RectFromXYWH(200, 120, 120, 30)),
		},
		Timestamp: ts,
	}
	out, err := w.Write(context.Background(), in)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	wantAnnotated := filepath.Join(dir, "results", "car.front_result_20240309_140506.jpg")
	if out.Annotated != wantAnnotated {
		t.Fatalf("annotated = %s, want %s", out.Annotated, wantAnnotated)
	}
	if len(out.Crops) != 2 || filepath.Base(out.Crops[1]) != "car.front_plate_2_20240309_140506.jpg" {
		t.Fatalf("unexpected crops %v", out.Crops)
	}
	for _, p := range out.All() {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing output %s: %v", p, err)
		}
	}
	if len(up.keys) != len(out.All()) || !strings.HasPrefix(up.keys[0], "results/") {
		t.Fatalf("uploaded keys = %v", up.keys)
	}

	text, _ := os.ReadFile(out.Text)
	if !strings.Contains(string(text), "Plates detected: 2") || !strings.Contains(string(text), "Confidence: 90.0%") {
		t.Fatalf("unexpected text report:\n%s", text)
	}

	f, _ := os.Open(out.CSV)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	want := []string{"2024-03-09 14:05:06", "car.front.jpg", "1", "AB-234-CD", "90.0%", "ab-234-cd", "FR-dash", "10", "20", "130", "50"}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Fatalf("csv col %s = %q, want %q", CSVHeader[i], rows[1][i], want[i])
		}
	}
}

func TestWriteText_NoPlatesVersusLoadError(t *testing.T) {
	var none, failed bytes.Buffer
	if err := WriteText(&none, Input{SourcePath: "a.jpg"}); err != nil {
		t.Fatal(err)
	}
	if err := WriteText(&failed, Input{SourcePath: "b.jpg", Err: errors.New("bad header")}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(none.String(), "NO PLATES DETECTED") || strings.Contains(none.String(), "LOAD ERROR") {
		t.Fatalf("no-plates report:\n%s", none.String())
	}
	if !strings.Contains(failed.String(), "LOAD ERROR: bad header") || strings.Contains(failed.String(), "NO PLATES DETECTED") {
		t.Fatalf("load-error report:\n%s", failed.String())
	}
}

func TestWriter_LoadErrorWritesTextOnly(t *testing.T) {
	w, err := NewWriter(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	out, err := w.Write(context.Background(), Input{SourcePath: "broken.png", Err: errors.New("decode failed")})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if out.Annotated != "" || out.CSV != "" || len(out.Crops) != 0 || out.Text == "" {
		t.Fatalf("unexpected outputs %+v", out)
	}
}

func TestBuildWorkbook(t *testing.T) {
	now := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	entries := []WorkbookEntry{
		{SourcePath: "a.jpg", Status: "DONE", ProcessedAt: now, Records: []entity.PlateRecord{
			record(t, "AB-234-CD", 0.9, entity.RectFromXYWH(0, 0, 100, 20)),
			record(t, "XY-967-ZT", 0.7, entity.RectFromXYWH(0, 40, 100, 20)),
		}},
		{SourcePath: "b.jpg", Status: "DONE", ProcessedAt: now, Records: []entity.PlateRecord{
			record(t, "AB-234-CD", 0.8, entity.RectFromXYWH(0, 0, 100, 20)),
		}},
		{SourcePath: "c.jpg", Status: "NO_PLATES", ProcessedAt: now},
		{SourcePath: "d.jpg", Status: "LOAD_ERROR", Error: "decode failed"},
	}
	data, err := BuildWorkbook(entries)
	if err != nil {
		t.Fatalf("BuildWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(platesSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected header + 5 rows, got %d", len(rows))
	}
	if rows[1][4] != "AB-234-CD" || rows[5][2] != "LOAD_ERROR" {
		t.Fatalf("unexpected rows %v", rows)
	}

	unique, _ := f.GetCellValue(summarySheet, "B3")
	if unique != "2" {
		t.Fatalf("unique plates = %s, want 2", unique)
	}
	files, _ := f.GetCellValue(summarySheet, "B1")
	if files != "4" {
		t.Fatalf("files = %s, want 4", files)
	}
}
