package entity

import "image"

// CandidateRegion is a plate-shaped area found by geometric filtering.
// ROI is cropped from the working image and shares its coordinate origin
// at (Rect.XMin, Rect.YMin).
type CandidateRegion struct {
	Rect       Rect
	ROI        image.Image
	Area       float64
	Confidence float64
}
