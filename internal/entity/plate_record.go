package entity

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
)

const (
	MinPlateLength = 6
	MaxPlateLength = 12
)

var rePlateAlphabet = regexp.MustCompile(`^[A-Z0-9-]+$`)

// PlateRecord is a validated plate reading. Polygon is in working-image coordinates.
// Build it with NewPlateRecord; records are passed by value and never mutated.
type PlateRecord struct {
	ID         uuid.UUID `json:"id"`
	Text       string    `json:"text"`
	RawText    string    `json:"raw_text"`
	Confidence float64   `json:"confidence"`
	Polygon    Polygon   `json:"polygon"`
	Format     string    `json:"format"`
}

// NewPlateRecord validates every field and returns the record.
func NewPlateRecord(text, rawText string, confidence float64, polygon Polygon, format string) (PlateRecord, error) {
	v := common.NewValidator().
		Field("text", text,
			common.Required,
			common.LengthBetween(MinPlateLength, MaxPlateLength),
			common.Matches(rePlateAlphabet, "must contain only A-Z, 0-9 and '-'"),
			hasLetterAndDigit).
		Field("confidence", confidence, common.FloatBetween(0, 1)).
		Field("polygon", polygon, common.MinItems(3, func(v interface{}) int { return len(v.(Polygon)) })).
		Field("format", format, common.Required)
	if err := v.Error(); err != nil {
		return PlateRecord{}, err
	}
	return PlateRecord{
		ID:         uuid.New(),
		Text:       text,
		RawText:    rawText,
		Confidence: confidence,
		Polygon:    polygon.Clone(),
		Format:     format,
	}, nil
}

func hasLetterAndDigit(fieldName string, value interface{}) *common.ValidationError {
	s, _ := value.(string)
	if !strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") || !strings.ContainsAny(s, "0123456789") {
		return &common.ValidationError{Field: fieldName, Value: value, Message: "must contain a letter and a digit"}
	}
	return nil
}

// Bounds returns the bounding box extrema of the plate polygon.
func (r PlateRecord) Bounds() Rect {
	return r.Polygon.Bounds()
}
