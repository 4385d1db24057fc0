package selector

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/fusion"
)

// Candidate is a selected clip window on the source timeline.
type Candidate struct {
	Index   int
	Start   float64
	End     float64
	Score   float64
	Reasons []string
}

// Options control clip selection.
type Options struct {
	Duration float64 // clip length in seconds
	Count    int     // maximum clips to pick
	MinGap   float64 // minimum spacing between clips in seconds
}

// Select slides a fixed-length window over the fused timeline one
// second at a time, scores each window by its mean fused score, and
// greedily picks the best non-overlapping windows. Windows near the
// end of the source are clipped to the media bound rather than
// dropped. Results come back in source order. Ties break toward the
// earlier window, so the same timeline always yields the same clips.
func Select(logger zerolog.Logger, timeline fusion.Timeline, opts Options) []Candidate {
	if len(timeline) == 0 || opts.Count <= 0 || opts.Duration <= 0 {
		return nil
	}

	window := int(opts.Duration)
	if window > len(timeline) {
		// no full-length window fits in the source
		logger.Info().
			Int("timeline", len(timeline)).
			Int("window", window).
			Msg("source shorter than clip duration, nothing to select")
		return []Candidate{}
	}

	total := timeline[len(timeline)-1].T + 1
	candidates := make([]Candidate, 0, len(timeline))
	for start := 0; start < len(timeline); start++ {
		end := start + window
		if end > len(timeline) {
			end = len(timeline)
		}
		var sum float64
		peak := start
		for i := start; i < end; i++ {
			sum += timeline[i].Score
			if timeline[i].Score > timeline[peak].Score {
				peak = i
			}
		}
		stop := timeline[start].T + opts.Duration
		if stop > total {
			stop = total
		}
		candidates = append(candidates, Candidate{
			Start:   timeline[start].T,
			End:     stop,
			Score:   sum / float64(end-start),
			Reasons: timeline[peak].Reasons,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Start < candidates[j].Start
	})

	selected := make([]Candidate, 0, opts.Count)
	for _, c := range candidates {
		if len(selected) == opts.Count {
			break
		}
		if overlapsAny(c, selected, opts.MinGap) {
			continue
		}
		selected = append(selected, c)
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Start < selected[j].Start })
	for i := range selected {
		selected[i].Index = i
	}

	logger.Info().
		Int("windows", len(candidates)).
		Int("selected", len(selected)).
		Msg("clip selection complete")
	return selected
}

// overlapsAny reports whether c sits closer than gap to any already
// selected window.
func overlapsAny(c Candidate, selected []Candidate, gap float64) bool {
	for _, s := range selected {
		if !(c.End+gap <= s.Start || c.Start >= s.End+gap) {
			return true
		}
	}
	return false
}
