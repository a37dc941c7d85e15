package utils

import (
	"encoding/hex"
	"time"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
	"github.com/joseph-ayodele/plates-tracker/internal/report"
)

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// PlateView is the API shape of one plate reading.
type PlateView struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	RawText    string         `json:"raw_text"`
	Confidence float64        `json:"confidence"`
	Percent    string         `json:"confidence_label"`
	Format     string         `json:"format"`
	Polygon    entity.Polygon `json:"polygon"`
	BBox       [4]int         `json:"bbox"` // x_min, y_min, x_max, y_max
}

// RunView is the API shape of a recognition run and its plates.
type RunView struct {
	ID           string      `json:"id"`
	SourcePath   string      `json:"source_path"`
	Filename     string      `json:"filename"`
	ContentHash  string      `json:"content_hash,omitempty"`
	Status       string      `json:"status"`
	Engine       string      `json:"engine,omitempty"`
	Regions      int         `json:"regions"`
	FallbackUsed bool        `json:"fallback_used"`
	PlateCount   int         `json:"plate_count"`
	Error        string      `json:"error,omitempty"`
	StartedAt    string      `json:"started_at"`
	FinishedAt   string      `json:"finished_at,omitempty"`
	Plates       []PlateView `json:"plates"`
}

func ToPlateView(r entity.PlateRecord) PlateView {
	b := r.Bounds()
	return PlateView{
		ID:         r.ID.String(),
		Text:       r.Text,
		RawText:    r.RawText,
		Confidence: r.Confidence,
		Percent:    report.Percent(r.Confidence),
		Format:     r.Format,
		Polygon:    r.Polygon,
		BBox:       [4]int{b.XMin, b.YMin, b.XMax, b.YMax},
	}
}

func ToPlateViews(records []entity.PlateRecord) []PlateView {
	out := make([]PlateView, 0, len(records))
	for _, r := range records {
		out = append(out, ToPlateView(r))
	}
	return out
}

func ToRunView(run *entity.PlateRun, records []entity.PlateRecord) RunView {
	v := RunView{
		ID:           run.ID.String(),
		SourcePath:   run.SourcePath,
		Filename:     run.Filename,
		Status:       run.Status,
		Engine:       run.Engine,
		Regions:      run.Regions,
		FallbackUsed: run.FallbackUsed,
		PlateCount:   run.PlateCount,
		Error:        strOrEmpty(run.ErrorMessage),
		StartedAt:    run.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:   timeOrEmpty(run.FinishedAt),
		Plates:       ToPlateViews(records),
	}
	if len(run.ContentHash) > 0 {
		v.ContentHash = hex.EncodeToString(run.ContentHash)
	}
	return v
}
