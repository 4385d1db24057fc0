package fusion

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/analyzer"
)

func flatSeries(score float64, seconds int) analyzer.Series {
	series := make(analyzer.Series, seconds)
	for i := range series {
		series[i] = analyzer.Sample{T: float64(i), Score: score}
	}
	return series
}

func TestWeightsForAllSignals(t *testing.T) {
	available := map[analyzer.Signal]bool{
		analyzer.SignalAudio:    true,
		analyzer.SignalMotion:   true,
		analyzer.SignalScene:    true,
		analyzer.SignalFaces:    true,
		analyzer.SignalSemantic: true,
	}
	w := WeightsFor(available)

	if w[analyzer.SignalSemantic] != 0.30 {
		t.Errorf("semantic weight = %f, want 0.30", w[analyzer.SignalSemantic])
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("weights sum to %f, want 1", sum)
	}
}

func TestWeightsForWithoutSemantic(t *testing.T) {
	available := map[analyzer.Signal]bool{
		analyzer.SignalAudio:  true,
		analyzer.SignalMotion: true,
		analyzer.SignalScene:  true,
		analyzer.SignalFaces:  true,
	}
	w := WeightsFor(available)

	if _, ok := w[analyzer.SignalSemantic]; ok {
		t.Error("semantic should have no weight when unavailable")
	}
	if w[analyzer.SignalAudio] != 0.30 || w[analyzer.SignalFaces] != 0.25 {
		t.Errorf("fallback table not applied: %v", w)
	}
}

func TestWeightsForRenormalizationKeepsRatios(t *testing.T) {
	// audio and motion only, from the fallback table (.30 and .25)
	available := map[analyzer.Signal]bool{
		analyzer.SignalAudio:  true,
		analyzer.SignalMotion: true,
	}
	w := WeightsFor(available)

	var sum float64
	for _, v := range w {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("weights sum to %f, want 1", sum)
	}
	ratio := w[analyzer.SignalAudio] / w[analyzer.SignalMotion]
	if math.Abs(ratio-0.30/0.25) > 1e-9 {
		t.Errorf("ratio = %f, want %f", ratio, 0.30/0.25)
	}
}

func TestWeightsForNothingAvailable(t *testing.T) {
	if w := WeightsFor(nil); len(w) != 0 {
		t.Errorf("expected empty weights, got %v", w)
	}
}

func TestFuseBlendsAlignedSignals(t *testing.T) {
	results := map[analyzer.Signal]analyzer.Series{
		analyzer.SignalAudio:  flatSeries(80, 10),
		analyzer.SignalMotion: flatSeries(40, 10),
	}

	timeline, weights := Fuse(zerolog.Nop(), results, 10)
	if len(timeline) != 10 {
		t.Fatalf("len(timeline) = %d, want 10", len(timeline))
	}

	want := weights[analyzer.SignalAudio]*80 + weights[analyzer.SignalMotion]*40
	for _, p := range timeline {
		if math.Abs(p.Score-want) > 1e-9 {
			t.Errorf("score at t=%.0f is %f, want %f", p.T, p.Score, want)
		}
		if p.Details[analyzer.SignalAudio] != 80 {
			t.Errorf("audio detail = %f, want 80", p.Details[analyzer.SignalAudio])
		}
	}
}

func TestFuseSkipsOutOfToleranceSamples(t *testing.T) {
	// single audio sample at t=0; only grid seconds 0 and 1 are
	// within the one-second alignment reach
	results := map[analyzer.Signal]analyzer.Series{
		analyzer.SignalAudio: {{T: 0, Score: 100}},
	}

	timeline, _ := Fuse(zerolog.Nop(), results, 5)
	if timeline[0].Score == 0 || timeline[1].Score == 0 {
		t.Error("seconds within tolerance should score")
	}
	for _, p := range timeline[2:] {
		if p.Score != 0 {
			t.Errorf("t=%.0f scored %f with no signal in reach", p.T, p.Score)
		}
	}
}

func TestFuseSemanticWiderTolerance(t *testing.T) {
	results := map[analyzer.Signal]analyzer.Series{
		analyzer.SignalAudio:    flatSeries(50, 12),
		analyzer.SignalSemantic: {{T: 3, Score: 90}},
	}

	timeline, _ := Fuse(zerolog.Nop(), results, 12)
	if _, ok := timeline[7].Details[analyzer.SignalSemantic]; !ok {
		t.Error("semantic sample at t=3 should reach t=7")
	}
	if _, ok := timeline[9].Details[analyzer.SignalSemantic]; ok {
		t.Error("semantic sample at t=3 should not reach t=9")
	}
}

func TestFuseReasons(t *testing.T) {
	results := map[analyzer.Signal]analyzer.Series{
		analyzer.SignalAudio:  flatSeries(90, 5), // above threshold 60
		analyzer.SignalMotion: flatSeries(70, 5), // above threshold 50
		analyzer.SignalScene:  flatSeries(10, 5), // below threshold 40
	}

	timeline, _ := Fuse(zerolog.Nop(), results, 5)
	p := timeline[0]
	if len(p.Reasons) != 2 {
		t.Fatalf("reasons = %v, want 2 entries", p.Reasons)
	}
	if p.Reasons[0] != "High audio energy" {
		t.Errorf("top reason = %q, want %q", p.Reasons[0], "High audio energy")
	}
	if p.Reasons[1] != "High motion" {
		t.Errorf("second reason = %q, want %q", p.Reasons[1], "High motion")
	}
}

func TestFuseCarriesInsight(t *testing.T) {
	insight := &analyzer.Insight{Description: "a goal celebration", ViralPotential: "high"}
	results := map[analyzer.Signal]analyzer.Series{
		analyzer.SignalAudio:    flatSeries(50, 5),
		analyzer.SignalSemantic: {{T: 2, Score: 95, Insight: insight}},
	}

	timeline, _ := Fuse(zerolog.Nop(), results, 5)
	p := timeline[2]
	if p.Insight == nil || p.Insight.Description != "a goal celebration" {
		t.Fatalf("insight not carried: %+v", p.Insight)
	}
	found := false
	for _, r := range p.Reasons {
		if r == "High viral potential" {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want viral tag", p.Reasons)
	}
}

func TestFuseDeterministic(t *testing.T) {
	results := map[analyzer.Signal]analyzer.Series{
		analyzer.SignalAudio:  flatSeries(75, 8),
		analyzer.SignalMotion: flatSeries(65, 8),
		analyzer.SignalFaces:  flatSeries(55, 8),
	}

	a, _ := Fuse(zerolog.Nop(), results, 8)
	b, _ := Fuse(zerolog.Nop(), results, 8)
	for i := range a {
		if a[i].Score != b[i].Score {
			t.Fatalf("scores diverge at t=%.0f", a[i].T)
		}
		if len(a[i].Reasons) != len(b[i].Reasons) {
			t.Fatalf("reasons diverge at t=%.0f", a[i].T)
		}
		for j := range a[i].Reasons {
			if a[i].Reasons[j] != b[i].Reasons[j] {
				t.Fatalf("reason order diverges at t=%.0f", a[i].T)
			}
		}
	}
}
