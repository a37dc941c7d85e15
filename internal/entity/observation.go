package entity

// Observation is one text line reported by an OCR backend, in the
// coordinate space of the image that was read.
type Observation struct {
	Polygon    Polygon `json:"polygon"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}
