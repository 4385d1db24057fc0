package fetch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/pkg/util"
)

// ErrorKind classifies download failures so the pipeline can surface
// distinct messages for each.
type ErrorKind string

const (
	ErrUnavailable  ErrorKind = "unavailable"
	ErrPrivate      ErrorKind = "private"
	ErrRegionLocked ErrorKind = "region_locked"
	ErrLiveStream   ErrorKind = "live_stream"
	ErrTooLong      ErrorKind = "too_long"
	ErrGeneric      ErrorKind = "download_failed"
)

// DownloadError wraps a fetch failure with its classification.
type DownloadError struct {
	Kind    ErrorKind
	Message string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// MediaInfo describes a fetched video.
type MediaInfo struct {
	Path     string
	Title    string
	Channel  string
	Duration float64 // seconds
	Cached   bool
}

// ProgressFunc receives the downloaded fraction in [0,1].
type ProgressFunc func(frac float64)

// Downloader fetches source videos with yt-dlp.
type Downloader struct {
	logger      zerolog.Logger
	binPath     string
	downloads   string
	maxDuration int // seconds
}

// NewDownloader creates a downloader writing into tempDir/downloads.
func NewDownloader(logger zerolog.Logger, binPath, tempDir string, maxDuration int) (*Downloader, error) {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	resolved, err := exec.LookPath(binPath)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not found in PATH: %w", err)
	}

	downloads := filepath.Join(tempDir, "downloads")
	if err := util.EnsureDir(downloads); err != nil {
		return nil, err
	}

	return &Downloader{
		logger:      logger.With().Str("component", "fetcher").Logger(),
		binPath:     resolved,
		downloads:   downloads,
		maxDuration: maxDuration,
	}, nil
}

// LocalPath returns the cache path for a video id.
func (d *Downloader) LocalPath(videoID string) string {
	return filepath.Join(d.downloads, videoID+".mp4")
}

// Fetch downloads the source video, reusing a cached copy when one
// exists. Progress is reported as a fraction when yt-dlp emits it.
func (d *Downloader) Fetch(ctx context.Context, sourceURL string, progress ProgressFunc) (*MediaInfo, error) {
	videoID := ExtractVideoID(sourceURL)
	if videoID == "" {
		return nil, &DownloadError{Kind: ErrGeneric, Message: "could not extract video id from URL"}
	}

	dest := d.LocalPath(videoID)
	if util.FileExists(dest) {
		d.logger.Info().Str("video_id", videoID).Msg("using cached download")
		return &MediaInfo{Path: dest, Cached: true}, nil
	}

	meta, err := d.probe(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	if meta.IsLive {
		return nil, &DownloadError{Kind: ErrLiveStream, Message: "cannot process live streams"}
	}
	if d.maxDuration > 0 && meta.Duration > float64(d.maxDuration) {
		return nil, &DownloadError{
			Kind: ErrTooLong,
			Message: fmt.Sprintf("video is too long (%.0fs), maximum allowed is %ds (%d minutes)",
				meta.Duration, d.maxDuration, d.maxDuration/60),
		}
	}

	if err := d.download(ctx, sourceURL, dest, progress); err != nil {
		return nil, err
	}
	if !util.FileExists(dest) {
		return nil, &DownloadError{Kind: ErrGeneric, Message: "download completed but file not found"}
	}

	return &MediaInfo{
		Path:     dest,
		Title:    meta.Title,
		Channel:  meta.Channel,
		Duration: meta.Duration,
	}, nil
}

type sourceMeta struct {
	Title    string  `json:"title"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
	IsLive   bool    `json:"is_live"`
}

// probe fetches metadata without downloading
func (d *Downloader) probe(ctx context.Context, sourceURL string) (*sourceMeta, error) {
	args := []string{"--dump-json", "--no-playlist", "--no-warnings", sourceURL}

	cmd := exec.CommandContext(ctx, d.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyError(stderr.String())
	}

	var meta sourceMeta
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return nil, &DownloadError{Kind: ErrGeneric, Message: "could not parse source metadata"}
	}
	return &meta, nil
}

// download runs yt-dlp with progress line parsing
func (d *Downloader) download(ctx context.Context, sourceURL, dest string, progress ProgressFunc) error {
	outTemplate := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".%(ext)s"

	args := []string{
		"-f", "bestvideo[ext=mp4][height<=1080]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-warnings",
		"--newline",
		"-o", outTemplate,
		sourceURL,
	}

	d.logger.Info().Str("url", sourceURL).Str("dest", dest).Msg("downloading source video")

	cmd := exec.CommandContext(ctx, d.binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &DownloadError{Kind: ErrGeneric, Message: err.Error()}
	}
	if err := cmd.Start(); err != nil {
		return &DownloadError{Kind: ErrGeneric, Message: err.Error()}
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if frac, ok := parseProgressLine(scanner.Text()); ok && progress != nil {
			progress(frac)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classifyError(stderr.String())
	}

	// yt-dlp may write a different extension before merging
	expected := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".mp4"
	if expected != dest && util.FileExists(expected) {
		return os.Rename(expected, dest)
	}
	return nil
}

// parseProgressLine extracts the percentage from yt-dlp download lines
// like "[download]  42.3% of 10.00MiB at 1.00MiB/s".
func parseProgressLine(line string) (float64, bool) {
	if !strings.HasPrefix(line, "[download]") {
		return 0, false
	}
	fields := strings.Fields(line)
	for _, f := range fields {
		if strings.HasSuffix(f, "%") {
			pct, err := strconv.ParseFloat(strings.TrimSuffix(f, "%"), 64)
			if err != nil {
				return 0, false
			}
			return pct / 100, true
		}
	}
	return 0, false
}

// classifyError maps yt-dlp stderr output to a download error kind
func classifyError(stderr string) *DownloadError {
	lower := strings.ToLower(stderr)
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = "download failed"
	}

	switch {
	case strings.Contains(lower, "private video"):
		return &DownloadError{Kind: ErrPrivate, Message: "video is private"}
	case strings.Contains(lower, "available in your country"),
		strings.Contains(lower, "blocked in your country"):
		return &DownloadError{Kind: ErrRegionLocked, Message: "video is not available in this region"}
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "this video is unavailable"),
		strings.Contains(lower, "video has been removed"):
		return &DownloadError{Kind: ErrUnavailable, Message: "video is unavailable"}
	case strings.Contains(lower, "live event"), strings.Contains(lower, "is live"):
		return &DownloadError{Kind: ErrLiveStream, Message: "cannot process live streams"}
	default:
		return &DownloadError{Kind: ErrGeneric, Message: msg}
	}
}
