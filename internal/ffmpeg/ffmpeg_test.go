package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

func getTestDataPath(filename string) string {
	return filepath.Join("..", "..", "testdata", filename)
}

func TestExecutorCreation(t *testing.T) {
	skipIfNoFFmpeg(t)

	logger := zerolog.New(os.Stderr)
	exec, err := New(logger, 4)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	if exec.ffmpegPath == "" {
		t.Error("ffmpeg path is empty")
	}
	if exec.ffprobePath == "" {
		t.Error("ffprobe path is empty")
	}
}

func TestFilterBuilder(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Scale(1080, 1920).Format("yuv420p").Build()

	expected := "scale=1080:1920,format=yuv420p"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderEmpty(t *testing.T) {
	fb := NewFilterBuilder()
	if filter := fb.Build(); filter != "" {
		t.Errorf("expected empty string, got %q", filter)
	}
}

func TestFilterBuilderIgnoresInvalid(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Scale(0, 0).Crop(-1, 10, 0, 0).FPS(-5).Build()
	if filter != "" {
		t.Errorf("expected invalid filters to be dropped, got %q", filter)
	}
}

func TestBuildVerticalFilterLandscape(t *testing.T) {
	// 1920x1080 source: crop sides to 607x1080 centered at x=656
	filter := buildVerticalFilter(1920, 1080, 1080, 1920)
	expected := "crop=607:1080:656:0,scale=1080:1920"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestBuildVerticalFilterTall(t *testing.T) {
	// 1080x2400 source: taller than 9:16, crop top/bottom
	filter := buildVerticalFilter(1080, 2400, 1080, 1920)
	expected := "crop=1080:1920:0:240,scale=1080:1920"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestProbeVideo(t *testing.T) {
	skipIfNoFFmpeg(t)

	testVideoPath := getTestDataPath("test.mp4")
	if _, err := os.Stat(testVideoPath); os.IsNotExist(err) {
		t.Skipf("test video not found at %s", testVideoPath)
	}

	logger := zerolog.New(os.Stderr)
	exec, err := New(logger, 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	info, err := exec.ProbeVideo(context.Background(), testVideoPath)
	if err != nil {
		t.Fatalf("ProbeVideo failed: %v", err)
	}
	if info.Width == 0 || info.Height == 0 {
		t.Errorf("missing dimensions: %dx%d", info.Width, info.Height)
	}
	if info.Duration == 0 {
		t.Error("duration is zero")
	}
}

func TestExtractGrayFrames(t *testing.T) {
	skipIfNoFFmpeg(t)

	testVideoPath := getTestDataPath("test.mp4")
	if _, err := os.Stat(testVideoPath); os.IsNotExist(err) {
		t.Skip("test video not found")
	}

	logger := zerolog.New(os.Stderr)
	exec, err := New(logger, 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	frames, err := exec.ExtractGrayFrames(context.Background(), testVideoPath, 0.5, 160, 90)
	if err != nil {
		t.Fatalf("ExtractGrayFrames failed: %v", err)
	}
	if len(frames) == 0 {
		t.Fatal("no frames extracted")
	}
	for i, f := range frames {
		if len(f.Pix) != 160*90 {
			t.Fatalf("frame %d has %d bytes, want %d", i, len(f.Pix), 160*90)
		}
		if i > 0 && f.T <= frames[i-1].T {
			t.Fatalf("timestamps not increasing at frame %d", i)
		}
	}
}

func TestExtractGrayFramesBadInterval(t *testing.T) {
	skipIfNoFFmpeg(t)

	logger := zerolog.New(os.Stderr)
	exec, err := New(logger, 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	if _, err := exec.ExtractGrayFrames(context.Background(), "in.mp4", 0, 160, 90); err == nil {
		t.Error("expected error for zero interval")
	}
}
