package media

import (
	"context"
	"os"
	osexec "os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/config"
	"github.com/keagan/shortforge/internal/ffmpeg"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := osexec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	if _, err := osexec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available")
	}
}

func TestSampleIntegration(t *testing.T) {
	skipIfNoFFmpeg(t)

	testVideoPath := filepath.Join("..", "..", "testdata", "test.mp4")
	if _, err := os.Stat(testVideoPath); os.IsNotExist(err) {
		t.Skipf("test video not found at %s", testVideoPath)
	}

	logger := zerolog.New(os.Stderr)
	exec, err := ffmpeg.New(logger, 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	sampler := NewSampler(logger, exec, config.SamplingConfig{
		FrameInterval:   0.5,
		FaceInterval:    1,
		AudioSampleRate: 22050,
		FrameWidth:      160,
		FrameHeight:     90,
	}, config.SemanticConfig{Enabled: false})

	samples, err := sampler.Sample(context.Background(), testVideoPath, t.TempDir())
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if samples.Duration <= 0 {
		t.Error("duration not probed")
	}
	if len(samples.Gray) == 0 {
		t.Error("no gray frames extracted")
	}
	if len(samples.RGB) == 0 {
		t.Error("no rgb frames extracted")
	}
	if len(samples.JPEG) != 0 {
		t.Error("jpeg frames extracted with semantic disabled")
	}
	for _, f := range samples.Gray {
		if len(f.Pix) != 160*90 {
			t.Fatalf("gray frame has %d bytes, want %d", len(f.Pix), 160*90)
		}
	}
}
