package analyzer

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/media"
)

const (
	motionBlockSize   = 8
	motionSearchRange = 4
)

// MotionAnalyzer estimates motion between consecutive grayscale
// frames with block matching and scores the mean displacement.
type MotionAnalyzer struct {
	logger zerolog.Logger
}

func NewMotionAnalyzer(logger zerolog.Logger) *MotionAnalyzer {
	return &MotionAnalyzer{logger: logger.With().Str("analyzer", "motion").Logger()}
}

func (a *MotionAnalyzer) Name() Signal { return SignalMotion }

func (a *MotionAnalyzer) Analyze(ctx context.Context, samples *media.Samples) (Series, error) {
	if len(samples.Gray) < 2 {
		return nil, ErrUnavailable
	}

	series := make(Series, 0, len(samples.Gray)-1)
	for i := 1; i < len(samples.Gray); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prev, cur := samples.Gray[i-1], samples.Gray[i]
		if prev.Width != cur.Width || prev.Height != cur.Height {
			continue
		}
		flow := meanBlockFlow(prev.Pix, cur.Pix, cur.Width, cur.Height)
		series = append(series, Sample{
			T:     cur.T,
			Score: clampScore(flow * 10),
		})
	}
	if len(series) == 0 {
		return nil, ErrUnavailable
	}

	a.logger.Debug().Int("points", len(series)).Msg("motion analysis complete")
	return series, nil
}

// meanBlockFlow matches each block of prev against a small search
// window in cur and returns the mean displacement magnitude in pixels.
func meanBlockFlow(prev, cur []byte, width, height int) float64 {
	var total float64
	var blocks int

	for by := 0; by+motionBlockSize <= height; by += motionBlockSize {
		for bx := 0; bx+motionBlockSize <= width; bx += motionBlockSize {
			dx, dy := bestMatch(prev, cur, width, height, bx, by)
			total += math.Hypot(float64(dx), float64(dy))
			blocks++
		}
	}
	if blocks == 0 {
		return 0
	}
	return total / float64(blocks)
}

func bestMatch(prev, cur []byte, width, height, bx, by int) (int, int) {
	// seed with zero displacement so a static block never registers
	// motion on a SAD tie
	bestSAD := blockSAD(prev, cur, width, bx, by, bx, by)
	bestDX, bestDY := 0, 0

	for dy := -motionSearchRange; dy <= motionSearchRange; dy++ {
		for dx := -motionSearchRange; dx <= motionSearchRange; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := bx+dx, by+dy
			if nx < 0 || ny < 0 || nx+motionBlockSize > width || ny+motionBlockSize > height {
				continue
			}
			if sad := blockSAD(prev, cur, width, bx, by, nx, ny); sad < bestSAD {
				bestSAD = sad
				bestDX, bestDY = dx, dy
			}
		}
	}
	return bestDX, bestDY
}

func blockSAD(prev, cur []byte, width, bx, by, nx, ny int) int {
	sad := 0
	for y := 0; y < motionBlockSize; y++ {
		prevRow := (by+y)*width + bx
		curRow := (ny+y)*width + nx
		for x := 0; x < motionBlockSize; x++ {
			d := int(prev[prevRow+x]) - int(cur[curRow+x])
			if d < 0 {
				d = -d
			}
			sad += d
		}
	}
	return sad
}
