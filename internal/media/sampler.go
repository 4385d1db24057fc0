package media

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/config"
	"github.com/keagan/shortforge/internal/ffmpeg"
)

// Samples holds every stream an analyzer might consume, sampled once
// per job so the analyzers can fan out over shared data. Streams that
// failed to extract are left empty; the corresponding analyzers then
// report themselves unavailable.
type Samples struct {
	Duration   float64 // seconds
	Gray       []ffmpeg.GrayFrame
	RGB        []ffmpeg.RGBFrame
	JPEG       []ffmpeg.JPEGFrame
	PCM        []float64
	SampleRate int
}

// Sampler extracts analyzer inputs from a downloaded video.
type Sampler struct {
	logger zerolog.Logger
	exec   *ffmpeg.Executor
	cfg    config.SamplingConfig
	sem    config.SemanticConfig
}

// NewSampler creates a sampler backed by the ffmpeg executor.
func NewSampler(logger zerolog.Logger, exec *ffmpeg.Executor, cfg config.SamplingConfig, sem config.SemanticConfig) *Sampler {
	return &Sampler{
		logger: logger.With().Str("component", "sampler").Logger(),
		exec:   exec,
		cfg:    cfg,
		sem:    sem,
	}
}

// Sample probes the video and extracts gray frames, RGB frames, JPEG
// frames and PCM audio. Individual stream failures are tolerated;
// only a video that yields nothing at all is an error.
func (s *Sampler) Sample(ctx context.Context, videoPath, workDir string) (*Samples, error) {
	info, err := s.exec.ProbeVideo(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("probe failed: %w", err)
	}

	out := &Samples{
		Duration:   info.Duration.Seconds(),
		SampleRate: s.cfg.AudioSampleRate,
	}

	gray, err := s.exec.ExtractGrayFrames(ctx, videoPath, s.cfg.FrameInterval, s.cfg.FrameWidth, s.cfg.FrameHeight)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn().Err(err).Msg("gray frame extraction failed, motion and scene signals will be unavailable")
	} else {
		out.Gray = gray
	}

	rgb, err := s.exec.ExtractRGBFrames(ctx, videoPath, s.cfg.FaceInterval, s.cfg.FrameWidth, s.cfg.FrameHeight)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn().Err(err).Msg("rgb frame extraction failed, face signal will be unavailable")
	} else {
		out.RGB = rgb
	}

	if info.HasAudio {
		pcm, err := s.exec.ExtractPCM(ctx, videoPath, s.cfg.AudioSampleRate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn().Err(err).Msg("pcm extraction failed, audio signal will be unavailable")
		} else {
			out.PCM = pcm
		}
	}

	if s.sem.Enabled {
		frameDir := filepath.Join(workDir, "frames")
		jpeg, err := s.exec.ExtractJPEGFrames(ctx, videoPath, frameDir, s.sem.SampleInterval, s.sem.MaxFrames)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn().Err(err).Msg("jpeg frame extraction failed, semantic signal will be unavailable")
		} else {
			out.JPEG = jpeg
		}
	}

	if len(out.Gray) == 0 && len(out.RGB) == 0 && len(out.PCM) == 0 && len(out.JPEG) == 0 {
		return nil, fmt.Errorf("no samples could be extracted from %s", videoPath)
	}

	s.logger.Info().
		Float64("duration", out.Duration).
		Int("gray", len(out.Gray)).
		Int("rgb", len(out.RGB)).
		Int("jpeg", len(out.JPEG)).
		Int("pcm", len(out.PCM)).
		Msg("sampling complete")

	return out, nil
}
