package entity

import (
	"errors"
	"testing"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
)

func quad() Polygon {
	return QuadFromRect(Rect{XMin: 10, YMin: 20, XMax: 110, YMax: 45})
}

func TestNewPlateRecord(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		conf    float64
		poly    Polygon
		format  string
		wantErr bool
	}{
		{name: "fr dash", text: "AB-123-CD", conf: 0.9, poly: quad(), format: "FR-dash"},
		{name: "max length", text: "ABCDEF123456", conf: 0.5, poly: quad(), format: "non-standard"},
		{name: "empty", text: "", conf: 0.5, poly: quad(), format: "x", wantErr: true},
		{name: "lowercase", text: "ab123cd", conf: 0.5, poly: quad(), format: "x", wantErr: true},
		{name: "too short", text: "AB12", conf: 0.5, poly: quad(), format: "x", wantErr: true},
		{name: "too long", text: "ABCDEFG123456", conf: 0.5, poly: quad(), format: "x", wantErr: true},
		{name: "no digit", text: "ABCDEFG", conf: 0.5, poly: quad(), format: "x", wantErr: true},
		{name: "no letter", text: "1234567", conf: 0.5, poly: quad(), format: "x", wantErr: true},
		{name: "bad rune", text: "AB 123 CD", conf: 0.5, poly: quad(), format: "x", wantErr: true},
		{name: "confidence above one", text: "AB123CD", conf: 1.5, poly: quad(), format: "x", wantErr: true},
		{name: "missing polygon", text: "AB123CD", conf: 0.5, poly: nil, format: "x", wantErr: true},
		{name: "missing format", text: "AB123CD", conf: 0.5, poly: quad(), format: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewPlateRecord(tt.text, "raw", tt.conf, tt.poly, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got record %+v", rec)
				}
				if !errors.Is(err, common.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Text != tt.text || rec.Format != tt.format {
				t.Fatalf("unexpected record %+v", rec)
			}
		})
	}
}

func TestNewPlateRecordCopiesPolygon(t *testing.T) {
	poly := quad()
	rec, err := NewPlateRecord("AB123CD", "ab123cd", 0.8, poly, "FR-nodash")
	if err != nil {
		t.Fatal(err)
	}
	poly[0].X = 999
	if rec.Polygon[0].X == 999 {
		t.Fatal("record polygon aliases caller slice")
	}
}
