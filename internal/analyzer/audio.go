package analyzer

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/media"
)

// AudioAnalyzer scores loudness and onsets over one-second windows.
// Sustained energy and sharp attacks both read as engagement.
type AudioAnalyzer struct {
	logger zerolog.Logger
}

func NewAudioAnalyzer(logger zerolog.Logger) *AudioAnalyzer {
	return &AudioAnalyzer{logger: logger.With().Str("analyzer", "audio").Logger()}
}

func (a *AudioAnalyzer) Name() Signal { return SignalAudio }

func (a *AudioAnalyzer) Analyze(ctx context.Context, samples *media.Samples) (Series, error) {
	if len(samples.PCM) == 0 || samples.SampleRate <= 0 {
		return nil, ErrUnavailable
	}

	window := samples.SampleRate // one second
	windows := len(samples.PCM) / window
	if windows == 0 {
		return nil, ErrUnavailable
	}

	rms := make([]float64, windows)
	for i := 0; i < windows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var sum float64
		for _, v := range samples.PCM[i*window : (i+1)*window] {
			sum += v * v
		}
		rms[i] = math.Sqrt(sum / float64(window))
	}

	// Onset strength is the positive loudness delta between windows.
	onsets := make([]float64, windows)
	var maxOnset float64
	for i := 1; i < windows; i++ {
		if d := rms[i] - rms[i-1]; d > 0 {
			onsets[i] = d
			if d > maxOnset {
				maxOnset = d
			}
		}
	}

	minRMS, maxRMS := rms[0], rms[0]
	for _, v := range rms[1:] {
		if v < minRMS {
			minRMS = v
		}
		if v > maxRMS {
			maxRMS = v
		}
	}
	spread := maxRMS - minRMS

	series := make(Series, windows)
	for i := 0; i < windows; i++ {
		var energy float64
		if spread > 0 {
			energy = (rms[i] - minRMS) / spread
		}
		var onset float64
		if maxOnset > 0 {
			onset = onsets[i] / maxOnset
		}
		series[i] = Sample{
			T:     float64(i),
			Score: clampScore(energy*100 + onset*50),
		}
	}

	a.logger.Debug().Int("windows", windows).Msg("audio analysis complete")
	return series, nil
}
