package entity

import (
	"time"

	"github.com/google/uuid"
)

// PlateRun is one recognition pass over a source image, for data transfer between layers.
type PlateRun struct {
	ID           uuid.UUID  `json:"id"`
	SourcePath   string     `json:"source_path"`
	Filename     string     `json:"filename"`
	ContentHash  []byte     `json:"content_hash,omitempty"`
	Status       string     `json:"status"`
	Engine       string     `json:"engine"`
	Regions      int        `json:"regions"`
	FallbackUsed bool       `json:"fallback_used"`
	PlateCount   int        `json:"plate_count"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
