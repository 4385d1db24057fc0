package ffmpeg

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// GrayFrame is a downscaled single-channel frame sampled from a video.
type GrayFrame struct {
	T      float64 // seconds from start
	Width  int
	Height int
	Pix    []byte // row-major, one byte per pixel
}

// RGBFrame is a downscaled packed-RGB frame sampled from a video.
type RGBFrame struct {
	T      float64
	Width  int
	Height int
	Pix    []byte // row-major, 3 bytes per pixel
}

// JPEGFrame is an encoded frame kept for vision-model analysis.
type JPEGFrame struct {
	T    float64
	Data []byte
}

// ExtractGrayFrames samples grayscale frames at the given interval,
// downscaled to width x height. Raw frames stream over stdout.
func (e *Executor) ExtractGrayFrames(ctx context.Context, input string, interval float64, width, height int) ([]GrayFrame, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive")
	}

	filter := NewFilterBuilder().
		Custom(fmt.Sprintf("fps=1/%g", interval)).
		Scale(width, height).
		Format("gray").
		Build()

	args := []string{
		"-i", input,
		"-vf", filter,
		"-f", "rawvideo",
		"pipe:1",
	}

	raw, err := e.RunCapture(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("gray frame extraction failed: %w", err)
	}

	frameSize := width * height
	count := len(raw) / frameSize
	frames := make([]GrayFrame, 0, count)
	for i := 0; i < count; i++ {
		frames = append(frames, GrayFrame{
			T:      float64(i) * interval,
			Width:  width,
			Height: height,
			Pix:    raw[i*frameSize : (i+1)*frameSize],
		})
	}

	e.logger.Info().Int("frames", len(frames)).Float64("interval", interval).Msg("gray frames extracted")
	return frames, nil
}

// ExtractRGBFrames samples packed-RGB frames at the given interval.
func (e *Executor) ExtractRGBFrames(ctx context.Context, input string, interval float64, width, height int) ([]RGBFrame, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive")
	}

	filter := NewFilterBuilder().
		Custom(fmt.Sprintf("fps=1/%g", interval)).
		Scale(width, height).
		Format("rgb24").
		Build()

	args := []string{
		"-i", input,
		"-vf", filter,
		"-f", "rawvideo",
		"pipe:1",
	}

	raw, err := e.RunCapture(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("rgb frame extraction failed: %w", err)
	}

	frameSize := width * height * 3
	count := len(raw) / frameSize
	frames := make([]RGBFrame, 0, count)
	for i := 0; i < count; i++ {
		frames = append(frames, RGBFrame{
			T:      float64(i) * interval,
			Width:  width,
			Height: height,
			Pix:    raw[i*frameSize : (i+1)*frameSize],
		})
	}

	e.logger.Info().Int("frames", len(frames)).Float64("interval", interval).Msg("rgb frames extracted")
	return frames, nil
}

// ExtractJPEGFrames writes sampled frames as JPEG files into dir and
// returns them loaded into memory, capped at maxFrames.
func (e *Executor) ExtractJPEGFrames(ctx context.Context, input, dir string, interval float64, maxFrames int) ([]JPEGFrame, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	pattern := filepath.Join(dir, "frame_%05d.jpg")
	args := []string{
		"-i", input,
		"-vf", fmt.Sprintf("fps=1/%g,scale=512:-2", interval),
		"-q:v", "2",
	}
	if maxFrames > 0 {
		args = append(args, "-frames:v", fmt.Sprintf("%d", maxFrames))
	}
	args = append(args, pattern)

	opts := RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("jpeg frame extraction")
		},
	}
	if err := e.Run(ctx, opts); err != nil {
		return nil, fmt.Errorf("jpeg frame extraction failed: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	frames := make([]JPEGFrame, 0, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, JPEGFrame{
			T:    float64(i) * interval,
			Data: data,
		})
	}

	e.logger.Info().Int("frames", len(frames)).Msg("jpeg frames extracted")
	return frames, nil
}

// ExtractPCM decodes the audio track to mono float samples at the
// given rate. Returns nil samples when the source has no audio.
func (e *Executor) ExtractPCM(ctx context.Context, input string, sampleRate int) ([]float64, error) {
	args := []string{
		"-i", input,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-f", "s16le",
		"pipe:1",
	}

	raw, err := e.RunCapture(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("pcm extraction failed: %w", err)
	}

	samples := make([]float64, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		samples[i] = float64(v) / 32768.0
	}

	e.logger.Info().Int("samples", len(samples)).Int("rate", sampleRate).Msg("pcm extracted")
	return samples, nil
}
