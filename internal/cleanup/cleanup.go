package cleanup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Stats summarizes one sweep.
type Stats struct {
	RemovedFiles int
	RemovedDirs  int
	FreedBytes   int64
}

// Sweep removes cached downloads and per-job artifact directories
// older than maxAge. Missing directories are not an error; a fresh
// install simply has nothing to sweep.
func Sweep(logger zerolog.Logger, tempDir string, maxAge time.Duration) (Stats, error) {
	var stats Stats
	cutoff := time.Now().Add(-maxAge)

	downloads := filepath.Join(tempDir, "downloads")
	entries, err := os.ReadDir(downloads)
	if err != nil && !os.IsNotExist(err) {
		return stats, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(downloads, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("failed to remove cached download")
			continue
		}
		stats.RemovedFiles++
		stats.FreedBytes += info.Size()
	}

	for _, sub := range []string{"outputs", "work"} {
		dir := filepath.Join(tempDir, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return stats, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			size, _ := dirSize(path)
			if err := os.RemoveAll(path); err != nil {
				logger.Warn().Err(err).Str("dir", path).Msg("failed to remove job artifacts")
				continue
			}
			stats.RemovedDirs++
			stats.FreedBytes += size
		}
	}

	logger.Info().
		Int("files", stats.RemovedFiles).
		Int("dirs", stats.RemovedDirs).
		Int64("freed_bytes", stats.FreedBytes).
		Msg("cleanup sweep complete")
	return stats, nil
}

// Usage reports the total bytes under the temp directory.
func Usage(tempDir string) (int64, error) {
	return dirSize(tempDir)
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// Runner sweeps on a fixed interval until its context is cancelled.
type Runner struct {
	logger   zerolog.Logger
	tempDir  string
	maxAge   time.Duration
	interval time.Duration
}

func NewRunner(logger zerolog.Logger, tempDir string, maxAge, interval time.Duration) *Runner {
	return &Runner{
		logger:   logger.With().Str("component", "cleanup").Logger(),
		tempDir:  tempDir,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Run blocks, sweeping once immediately and then every interval.
func (r *Runner) Run(ctx context.Context) {
	if _, err := Sweep(r.logger, r.tempDir, r.maxAge); err != nil {
		r.logger.Error().Err(err).Msg("cleanup sweep failed")
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := Sweep(r.logger, r.tempDir, r.maxAge); err != nil {
				r.logger.Error().Err(err).Msg("cleanup sweep failed")
			}
		}
	}
}
