package fusion

import (
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/analyzer"
)

// Alignment tolerances in seconds. The semantic series is sampled far
// more sparsely than the rest, so it gets a wider reach.
const (
	alignTolerance         = 1.0
	semanticAlignTolerance = 5.0
)

// reasonLabels and reasonThresholds drive the human-readable "why
// this moment" tags carried into the final segments.
var reasonLabels = map[analyzer.Signal]string{
	analyzer.SignalAudio:    "High audio energy",
	analyzer.SignalMotion:   "High motion",
	analyzer.SignalScene:    "Visual interest",
	analyzer.SignalFaces:    "Face detected",
	analyzer.SignalSemantic: "Engaging content",
}

var reasonThresholds = map[analyzer.Signal]float64{
	analyzer.SignalAudio:    60,
	analyzer.SignalMotion:   50,
	analyzer.SignalScene:    40,
	analyzer.SignalFaces:    30,
	analyzer.SignalSemantic: 60,
}

// Point is one second of the fused engagement timeline.
type Point struct {
	T       float64
	Score   float64 // 0..100
	Reasons []string
	Details map[analyzer.Signal]float64
	Insight *analyzer.Insight
}

// Timeline is the fused score at every second of the source video.
type Timeline []Point

// Fuse aligns each signal's series onto a one-second grid and blends
// them with renormalized weights. Signals with no samples are simply
// absent; their weight is redistributed over the rest.
func Fuse(logger zerolog.Logger, results map[analyzer.Signal]analyzer.Series, duration float64) (Timeline, Weights) {
	available := make(map[analyzer.Signal]bool, len(results))
	for sig, series := range results {
		if len(series) > 0 {
			available[sig] = true
		}
	}
	weights := WeightsFor(available)
	if len(weights) == 0 {
		return nil, weights
	}

	seconds := int(math.Floor(duration))
	if seconds < 1 {
		seconds = 1
	}

	timeline := make(Timeline, 0, seconds)
	for i := 0; i < seconds; i++ {
		t := float64(i)
		point := Point{T: t, Details: make(map[analyzer.Signal]float64, len(weights))}

		var fused float64
		for sig, w := range weights {
			sample, ok := nearest(results[sig], t, toleranceFor(sig))
			if !ok {
				continue
			}
			point.Details[sig] = sample.Score
			fused += w * sample.Score
			if sig == analyzer.SignalSemantic && sample.Insight != nil {
				point.Insight = sample.Insight
			}
		}

		point.Score = clamp(fused)
		point.Reasons = reasonsFor(point, weights)
		timeline = append(timeline, point)
	}

	logger.Debug().
		Int("points", len(timeline)).
		Int("signals", len(weights)).
		Msg("signal fusion complete")
	return timeline, weights
}

func toleranceFor(sig analyzer.Signal) float64 {
	if sig == analyzer.SignalSemantic {
		return semanticAlignTolerance
	}
	return alignTolerance
}

// nearest finds the sample closest to t within tol. Series are
// ordered by time, so a binary search narrows it to two candidates.
func nearest(series analyzer.Series, t, tol float64) (analyzer.Sample, bool) {
	if len(series) == 0 {
		return analyzer.Sample{}, false
	}

	i := sort.Search(len(series), func(j int) bool { return series[j].T >= t })
	best := -1
	for _, j := range [2]int{i - 1, i} {
		if j < 0 || j >= len(series) {
			continue
		}
		if best < 0 || math.Abs(series[j].T-t) < math.Abs(series[best].T-t) {
			best = j
		}
	}
	if best < 0 || math.Abs(series[best].T-t) > tol {
		return analyzer.Sample{}, false
	}
	return series[best], true
}

// reasonsFor labels the two strongest weighted contributors that
// cleared their signal's threshold.
func reasonsFor(p Point, weights Weights) []string {
	type contributor struct {
		sig      analyzer.Signal
		weighted float64
	}

	var qualifying []contributor
	for sig, score := range p.Details {
		if score > reasonThresholds[sig] {
			qualifying = append(qualifying, contributor{sig, weights[sig] * score})
		}
	}
	sort.Slice(qualifying, func(i, j int) bool {
		if qualifying[i].weighted != qualifying[j].weighted {
			return qualifying[i].weighted > qualifying[j].weighted
		}
		return qualifying[i].sig < qualifying[j].sig
	})

	var reasons []string
	for i, c := range qualifying {
		if i == 2 {
			break
		}
		reasons = append(reasons, reasonLabels[c.sig])
	}
	if p.Insight != nil && strings.EqualFold(p.Insight.ViralPotential, "high") {
		reasons = append(reasons, "High viral potential")
	}
	return reasons
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
