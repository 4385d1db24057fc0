package analyzer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/media"
)

// minFaceBlobFrac is the smallest connected skin region, as a
// fraction of the frame, counted as a face candidate. Smaller blobs
// are noise at 160x90.
const minFaceBlobFrac = 0.005

// FaceAnalyzer scores human presence. It runs a skin-tone mask over
// each RGB frame and counts connected regions large enough to be a
// face at the sampling resolution. Crude next to a trained detector,
// but it needs no model asset and holds up on talking-head footage.
type FaceAnalyzer struct {
	logger zerolog.Logger
}

func NewFaceAnalyzer(logger zerolog.Logger) *FaceAnalyzer {
	return &FaceAnalyzer{logger: logger.With().Str("analyzer", "faces").Logger()}
}

func (a *FaceAnalyzer) Name() Signal { return SignalFaces }

func (a *FaceAnalyzer) Analyze(ctx context.Context, samples *media.Samples) (Series, error) {
	if len(samples.RGB) == 0 {
		return nil, ErrUnavailable
	}

	series := make(Series, 0, len(samples.RGB))
	for _, frame := range samples.RGB {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		count, areaRatio := detectSkinRegions(frame.Pix, frame.Width, frame.Height)
		score := 500*areaRatio + 10*float64(count)
		series = append(series, Sample{
			T:     frame.T,
			Score: clampScore(score),
		})
	}

	a.logger.Debug().Int("points", len(series)).Msg("face analysis complete")
	return series, nil
}

// detectSkinRegions masks skin-toned pixels and flood-fills the mask
// into connected regions. Returns the region count and the total skin
// area as a fraction of the frame.
func detectSkinRegions(pix []byte, width, height int) (int, float64) {
	n := width * height
	if n == 0 || len(pix) < n*3 {
		return 0, 0
	}

	mask := make([]bool, n)
	skinPixels := 0
	for i := 0; i < n; i++ {
		r, g, b := pix[i*3], pix[i*3+1], pix[i*3+2]
		if isSkinTone(r, g, b) {
			mask[i] = true
			skinPixels++
		}
	}

	minBlob := int(float64(n) * minFaceBlobFrac)
	if minBlob < 1 {
		minBlob = 1
	}

	visited := make([]bool, n)
	regions := 0
	stack := make([]int, 0, 64)
	for i := 0; i < n; i++ {
		if !mask[i] || visited[i] {
			continue
		}
		size := 0
		stack = append(stack[:0], i)
		visited[i] = true
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x := p % width
			for _, q := range [4]int{p - 1, p + 1, p - width, p + width} {
				if q < 0 || q >= n || visited[q] || !mask[q] {
					continue
				}
				// reject horizontal wraparound
				qx := q % width
				if (q == p-1 && qx != x-1) || (q == p+1 && qx != x+1) {
					continue
				}
				visited[q] = true
				stack = append(stack, q)
			}
		}
		if size >= minBlob {
			regions++
		}
	}

	return regions, float64(skinPixels) / float64(n)
}

// isSkinTone applies the classic RGB skin-tone rule: red dominant,
// enough spread between channels, not too dark.
func isSkinTone(r, g, b byte) bool {
	if r <= 95 || g <= 40 || b <= 20 {
		return false
	}
	if r <= g || r <= b {
		return false
	}
	maxC, minC := r, r
	for _, c := range [2]byte{g, b} {
		if c > maxC {
			maxC = c
		}
		if c < minC {
			minC = c
		}
	}
	if int(maxC)-int(minC) <= 15 {
		return false
	}
	return int(r)-int(g) > 15
}
