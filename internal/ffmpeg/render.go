package ffmpeg

import (
	"context"
	"fmt"
	"os"

	"github.com/keagan/shortforge/pkg/util"
)

// Output dimensions for vertical video (9:16 aspect ratio)
const (
	VerticalWidth     = 1080
	VerticalHeight    = 1920
	VerticalWidthLow  = 720
	VerticalHeightLow = 1280
)

// VerticalOptions configures a vertical clip render
type VerticalOptions struct {
	Start        float64 // seconds
	Duration     float64 // seconds
	Output       string
	Width        int
	Height       int
	CRF          int
	Preset       string
	ProgressFunc ProgressFunc
}

// RenderVertical cuts a segment and converts it to a center-cropped
// 9:16 vertical clip optimized for mobile playback.
func (e *Executor) RenderVertical(ctx context.Context, input string, opts VerticalOptions) error {
	if opts.Duration <= 0 {
		return fmt.Errorf("invalid clip duration: must be positive")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	info, err := e.ProbeVideo(ctx, input)
	if err != nil {
		return fmt.Errorf("probe before render failed: %w", err)
	}

	width := opts.Width
	height := opts.Height
	if width <= 0 || height <= 0 {
		width = VerticalWidth
		height = VerticalHeight
	}
	crf := opts.CRF
	if crf == 0 {
		crf = DefaultCRF
	}
	preset := opts.Preset
	if preset == "" {
		preset = DefaultPreset
	}

	filter := buildVerticalFilter(info.Width, info.Height, width, height)

	e.logger.Info().
		Str("input", input).
		Str("output", opts.Output).
		Float64("start", opts.Start).
		Float64("duration", opts.Duration).
		Str("filter", filter).
		Msg("rendering vertical clip")

	args := []string{
		// Seek before input for fast keyframe-aligned seeking
		"-ss", util.FormatSeconds(opts.Start),
		"-i", input,
		"-t", util.FormatSeconds(opts.Duration),
		"-vf", filter,
		"-c:v", DefaultVideoCodec,
		"-preset", preset,
		"-crf", fmt.Sprintf("%d", crf),
		"-c:a", DefaultAudioCodec,
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-pix_fmt", "yuv420p",
		opts.Output,
	}

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("vertical render")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("vertical render failed: %w", err)
	}
	if _, err := os.Stat(opts.Output); err != nil {
		return fmt.Errorf("vertical render produced no output: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("vertical render complete")
	return nil
}

// buildVerticalFilter crops the source to 9:16 around its center, then
// scales to the target resolution. Wider sources lose their sides,
// taller sources lose top and bottom.
func buildVerticalFilter(inW, inH, outW, outH int) string {
	fb := NewFilterBuilder()

	const targetRatio = 9.0 / 16.0
	inRatio := float64(inW) / float64(inH)

	if inRatio > targetRatio {
		newW := int(float64(inH) * targetRatio)
		cropX := (inW - newW) / 2
		fb.Crop(newW, inH, cropX, 0)
	} else {
		newH := int(float64(inW) / targetRatio)
		cropY := (inH - newH) / 2
		fb.Crop(inW, newH, 0, cropY)
	}

	return fb.Scale(outW, outH).Build()
}

// Thumbnail extracts a single frame as a JPEG image
func (e *Executor) Thumbnail(ctx context.Context, input, output string, offset float64) error {
	if input == "" || output == "" {
		return fmt.Errorf("input and output paths are required")
	}

	args := []string{
		"-ss", util.FormatSeconds(offset),
		"-i", input,
		"-vframes", "1",
		"-q:v", "2",
		output,
	}

	opts := RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("thumbnail generation")
		},
	}

	return e.Run(ctx, opts)
}
