package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

const (
	platesSheet  = "Plates"
	summarySheet = "Summary"
)

// WorkbookEntry is one processed file in a batch workbook.
type WorkbookEntry struct {
	SourcePath  string
	Status      string
	Records     []entity.PlateRecord
	Error       string
	ProcessedAt time.Time
}

// BuildWorkbook returns XLSX bytes with one row per plate (or one row per
// file without plates) and a summary sheet.
func BuildWorkbook(entries []WorkbookEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// NewFile starts with "Sheet1"; rename it rather than leave it empty.
	if err := f.SetSheetName("Sheet1", platesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(platesSheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Processed At", "File", "Status", "Plate #", "Text", "Confidence",
		"Raw Text", "Format", "X Min", "Y Min", "X Max", "Y Max", "Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(platesSheet, cell, h)
	}

	row := 2
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(platesSheet, cell, v)
	}

	unique := map[string]int{}
	plates := 0
	statuses := map[string]int{}
	for _, e := range entries {
		statuses[e.Status]++
		processed := ""
		if !e.ProcessedAt.IsZero() {
			processed = e.ProcessedAt.Format("2006-01-02 15:04:05")
		}
		if len(e.Records) == 0 {
			write(1, processed)
			write(2, filepath.Base(e.SourcePath))
			write(3, e.Status)
			write(13, e.Error)
			row++
			continue
		}
		for i, rec := range e.Records {
			r := rec.Bounds()
			write(1, processed)
			write(2, filepath.Base(e.SourcePath))
			write(3, e.Status)
			write(4, i+1)
			write(5, rec.Text)
			write(6, rec.Confidence)
			write(7, rec.RawText)
			write(8, rec.Format)
			write(9, r.XMin)
			write(10, r.YMin)
			write(11, r.XMax)
			write(12, r.YMax)
			row++
			plates++
			unique[rec.Text]++
		}
	}

	_ = f.SetColWidth(platesSheet, "A", "A", 20) // date
	_ = f.SetColWidth(platesSheet, "B", "B", 32) // file
	_ = f.SetColWidth(platesSheet, "C", "C", 12) // status
	_ = f.SetColWidth(platesSheet, "E", "E", 16) // text
	_ = f.SetColWidth(platesSheet, "G", "H", 16)
	_ = f.SetColWidth(platesSheet, "M", "M", 48) // error
	if style, err := f.NewStyle(&excelize.Style{NumFmt: 10}); err == nil && row > 2 {
		_ = f.SetCellStyle(platesSheet, "F2", fmt.Sprintf("F%d", row-1), style)
	}

	writeSummary(f, len(entries), plates, statuses, unique)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, files, plates int, statuses, unique map[string]int) {
	set := func(r int, k string, v any) {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", r), k)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", r), v)
	}
	set(1, "Files", files)
	set(2, "Plates", plates)
	set(3, "Unique plates", len(unique))

	r := 5
	keys := make([]string, 0, len(statuses))
	for k := range statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", r), "Status")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", r), "Count")
	for _, k := range keys {
		r++
		set(r, k, statuses[k])
	}

	r += 2
	texts := make([]string, 0, len(unique))
	for k := range unique {
		texts = append(texts, k)
	}
	sort.Strings(texts)
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", r), "Plate")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", r), "Sightings")
	for _, t := range texts {
		r++
		set(r, t, unique[t])
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)
}
