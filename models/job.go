package models

import (
	"math"
	"time"
)

// JobStatus is the lifecycle state of a watermark job
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Position is where the logo is anchored on the target frame
type Position string

const (
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
	Full        Position = "full"
)

const (
	DefaultPosition = BottomRight
	DefaultScale    = 0.2
)

// Positions lists every accepted position value.
var Positions = []Position{TopLeft, TopRight, BottomLeft, BottomRight, Full}

// Valid reports whether p is one of the accepted positions.
func (p Position) Valid() bool {
	for _, known := range Positions {
		if p == known {
			return true
		}
	}
	return false
}

// ValidScale reports whether scale is usable as a fraction of the video height.
func ValidScale(scale float64) bool {
	return scale > 0 && !math.IsInf(scale, 0) && !math.IsNaN(scale)
}

// Job is a single request to watermark one video with one logo
type Job struct {
	ID          string    `json:"id"`
	Status      JobStatus `json:"status"`
	InputName   string    `json:"input_name"`
	LogoName    string    `json:"logo_name"`
	InputPath   string    `json:"-"`
	LogoPath    string    `json:"-"`
	OutputName  string    `json:"output_name,omitempty"`
	OutputPath  string    `json:"-"`
	Position    Position  `json:"position"`
	Scale       float64   `json:"scale"`
	Progress    int       `json:"progress"` // 0-100
	FileSize    int64     `json:"file_size,omitempty"`
	Destination string    `json:"destination,omitempty"` // registered publish target key
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JobRequest carries the parameters a job is created with
type JobRequest struct {
	InputName   string
	LogoName    string
	InputPath   string
	LogoPath    string
	Position    Position
	Scale       float64
	FileSize    int64
	Destination string
}
