package analyzer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/media"
)

// SceneAnalyzer scores visual change between consecutive grayscale
// frames. Cuts and big compositional shifts spike the score.
type SceneAnalyzer struct {
	logger zerolog.Logger
}

func NewSceneAnalyzer(logger zerolog.Logger) *SceneAnalyzer {
	return &SceneAnalyzer{logger: logger.With().Str("analyzer", "scene").Logger()}
}

func (a *SceneAnalyzer) Name() Signal { return SignalScene }

func (a *SceneAnalyzer) Analyze(ctx context.Context, samples *media.Samples) (Series, error) {
	if len(samples.Gray) < 2 {
		return nil, ErrUnavailable
	}

	series := make(Series, 0, len(samples.Gray)-1)
	for i := 1; i < len(samples.Gray); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prev, cur := samples.Gray[i-1], samples.Gray[i]
		if len(prev.Pix) != len(cur.Pix) || len(cur.Pix) == 0 {
			continue
		}
		var sum int
		for j := range cur.Pix {
			d := int(prev.Pix[j]) - int(cur.Pix[j])
			if d < 0 {
				d = -d
			}
			sum += d
		}
		meanDiff := float64(sum) / float64(len(cur.Pix))
		series = append(series, Sample{
			T:     cur.T,
			Score: clampScore(meanDiff / 255 * 100),
		})
	}
	if len(series) == 0 {
		return nil, ErrUnavailable
	}

	a.logger.Debug().Int("points", len(series)).Msg("scene analysis complete")
	return series, nil
}
