package fusion

import "github.com/keagan/shortforge/internal/analyzer"

// Weights maps each signal to its share of the fused score. A weight
// table is expected to sum to 1.
type Weights map[analyzer.Signal]float64

// DefaultWeights is used when the semantic signal contributed.
var DefaultWeights = Weights{
	analyzer.SignalAudio:    0.20,
	analyzer.SignalMotion:   0.20,
	analyzer.SignalScene:    0.15,
	analyzer.SignalFaces:    0.15,
	analyzer.SignalSemantic: 0.30,
}

// FallbackWeights is used when the semantic signal is unavailable.
var FallbackWeights = Weights{
	analyzer.SignalAudio:  0.30,
	analyzer.SignalMotion: 0.25,
	analyzer.SignalScene:  0.20,
	analyzer.SignalFaces:  0.25,
}

// WeightsFor picks the base table from the set of signals that
// actually produced data and renormalizes it over that set, keeping
// the surviving signals' ratios intact.
func WeightsFor(available map[analyzer.Signal]bool) Weights {
	base := FallbackWeights
	if available[analyzer.SignalSemantic] {
		base = DefaultWeights
	}

	var total float64
	for sig, w := range base {
		if available[sig] {
			total += w
		}
	}
	if total == 0 {
		return Weights{}
	}

	out := make(Weights, len(base))
	for sig, w := range base {
		if available[sig] {
			out[sig] = w / total
		}
	}
	return out
}
