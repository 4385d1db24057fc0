package analyzer

import (
	"context"
	"errors"

	"github.com/keagan/shortforge/internal/media"
)

// Signal identifies one engagement signal.
type Signal string

const (
	SignalAudio    Signal = "audio"
	SignalMotion   Signal = "motion"
	SignalScene    Signal = "scene"
	SignalFaces    Signal = "faces"
	SignalSemantic Signal = "semantic"
)

// ErrUnavailable is returned by an analyzer whose input stream is
// missing or whose backend cannot be reached. The pipeline treats it
// as a soft failure and fuses the remaining signals.
var ErrUnavailable = errors.New("signal unavailable")

// Insight carries what a vision model said about a frame. Only the
// semantic analyzer populates it.
type Insight struct {
	Score          int    `json:"score"`
	Description    string `json:"description"`
	ContentType    string `json:"content_type"`
	Mood           string `json:"mood"`
	ViralPotential string `json:"viral_potential"`
	HasPerson      bool   `json:"has_person"`
	HasText        bool   `json:"has_text"`
}

// Sample is one scored point on a signal's timeline.
type Sample struct {
	T       float64 // seconds from start
	Score   float64 // 0..100
	Insight *Insight
}

// Series is a signal's samples ordered by time.
type Series []Sample

// Analyzer scores one engagement signal over the sampled media.
type Analyzer interface {
	Name() Signal
	Analyze(ctx context.Context, samples *media.Samples) (Series, error)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
