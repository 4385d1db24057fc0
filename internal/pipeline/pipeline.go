package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/keagan/shortforge/internal/analyzer"
	"github.com/keagan/shortforge/internal/config"
	"github.com/keagan/shortforge/internal/fetch"
	"github.com/keagan/shortforge/internal/ffmpeg"
	"github.com/keagan/shortforge/internal/fusion"
	"github.com/keagan/shortforge/internal/jobs"
	"github.com/keagan/shortforge/internal/media"
	"github.com/keagan/shortforge/internal/selector"
)

// Allowed clip parameters. Anything else is rejected at submission.
var (
	ValidDurations = map[int]bool{30: true, 60: true, 90: true, 120: true, 180: true}
	ValidCounts    = map[int]bool{5: true, 10: true, 15: true}
)

// Progress checkpoints. Each stage owns a fixed slice of the bar so
// the number only ever climbs.
const (
	progressDownloadStart = 10
	progressDownloadEnd   = 25
	progressAnalyzeStart  = 30
	progressAnalyzeEnd    = 60
	progressComplete      = 100
)

// Fetcher downloads a source video, reporting fractional progress.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string, progress fetch.ProgressFunc) (*fetch.MediaInfo, error)
}

// Sampler extracts analyzer inputs from a downloaded video.
type Sampler interface {
	Sample(ctx context.Context, videoPath, workDir string) (*media.Samples, error)
}

// Renderer produces a vertical clip from a source segment.
type Renderer interface {
	RenderVertical(ctx context.Context, input string, opts ffmpeg.VerticalOptions) error
	Thumbnail(ctx context.Context, input, output string, offset float64) error
}

// Runner owns the job pipeline. Each job runs on its own goroutine,
// gated by a slot semaphore; the runner is the only writer of a
// running job's state.
type Runner struct {
	logger    zerolog.Logger
	cfg       *config.Config
	store     jobs.Store
	fetcher   Fetcher
	sampler   Sampler
	renderer  Renderer
	analyzers []analyzer.Analyzer

	slots chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(logger zerolog.Logger, cfg *config.Config, store jobs.Store, fetcher Fetcher, sampler Sampler, renderer Renderer, analyzers []analyzer.Analyzer) *Runner {
	maxActive := cfg.MaxActiveJobs
	if maxActive < 1 {
		maxActive = 1
	}
	return &Runner{
		logger:    logger.With().Str("component", "pipeline").Logger(),
		cfg:       cfg,
		store:     store,
		fetcher:   fetcher,
		sampler:   sampler,
		renderer:  renderer,
		analyzers: analyzers,
		slots:     make(chan struct{}, maxActive),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Submit validates the request, persists a queued job and starts it.
func (r *Runner) Submit(ctx context.Context, sourceURL string, clipDuration, clipCount int) (*jobs.Job, error) {
	if !fetch.ValidateURL(sourceURL) {
		return nil, &jobs.JobError{Kind: jobs.ErrKindValidation, Message: "not a valid YouTube URL"}
	}
	if !ValidDurations[clipDuration] {
		return nil, &jobs.JobError{Kind: jobs.ErrKindValidation, Message: fmt.Sprintf("unsupported clip duration %ds", clipDuration)}
	}
	if !ValidCounts[clipCount] {
		return nil, &jobs.JobError{Kind: jobs.ErrKindValidation, Message: fmt.Sprintf("unsupported clip count %d", clipCount)}
	}

	job := jobs.NewJob(sourceURL, fetch.ExtractVideoID(sourceURL), clipDuration, clipCount)
	if err := r.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancels[job.ID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(runCtx, job.ID)

	r.logger.Info().
		Str("job", job.ID).
		Str("video", job.VideoID).
		Int("duration", clipDuration).
		Int("count", clipCount).
		Msg("job submitted")
	return job.Clone(), nil
}

// Cancel aborts a running job. Terminal jobs are left alone.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Delete cancels the job if it is still running, removes its record
// and deletes its rendered clips.
func (r *Runner) Delete(ctx context.Context, id string) error {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	r.Cancel(id)

	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	outDir := r.outputDir(id)
	if err := os.RemoveAll(outDir); err != nil {
		r.logger.Warn().Err(err).Str("dir", outDir).Msg("failed to remove job outputs")
	}
	_ = os.RemoveAll(r.workDir(id))

	r.logger.Info().Str("job", job.ID).Msg("job deleted")
	return nil
}

// Wait blocks until every running job has finished. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) workDir(id string) string {
	return filepath.Join(r.cfg.TempDir, "work", id)
}

func (r *Runner) outputDir(id string) string {
	return filepath.Join(r.cfg.TempDir, "outputs", id)
}

func (r *Runner) run(ctx context.Context, id string) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		if cancel, ok := r.cancels[id]; ok {
			cancel()
			delete(r.cancels, id)
		}
		r.mu.Unlock()
	}()

	// wait for a slot; a cancel while queued fails the job
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		r.failJob(id, jobs.ErrKindSystem, "job cancelled")
		return
	}

	log := r.logger.With().Str("job", id).Logger()

	info, ok := r.download(ctx, id, log)
	if !ok {
		return
	}
	samples, ok := r.analyzeInput(ctx, id, info.Path, log)
	if !ok {
		return
	}
	timeline, ok := r.runAnalyzers(ctx, id, samples, log)
	if !ok {
		return
	}

	job, err := r.store.Get(context.Background(), id)
	if err != nil {
		log.Error().Err(err).Msg("job vanished mid-pipeline")
		return
	}

	candidates := selector.Select(log, timeline, selector.Options{
		Duration: float64(job.ClipDuration),
		Count:    job.ClipCount,
		MinGap:   r.cfg.MinSegmentGap,
	})

	if len(candidates) == 0 {
		// a dull video is a result, not a failure
		_, err := r.store.Update(context.Background(), id, func(j *jobs.Job) error {
			if err := j.Advance(jobs.StageCompleted); err != nil {
				return err
			}
			j.Segments = []jobs.Segment{}
			j.SetProgress(progressComplete)
			j.Message = "No engaging segments found"
			return nil
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to complete job")
		}
		log.Info().Msg("no engaging segments found")
		return
	}

	r.render(ctx, id, info.Path, candidates, log)
}

// download runs the fetch stage. Returns false if the job failed.
func (r *Runner) download(ctx context.Context, id string, log zerolog.Logger) (*fetch.MediaInfo, bool) {
	if !r.advance(id, jobs.StageDownloading, progressDownloadStart, "Downloading video from YouTube...") {
		return nil, false
	}

	job, err := r.store.Get(context.Background(), id)
	if err != nil {
		log.Error().Err(err).Msg("job vanished before download")
		return nil, false
	}

	span := float64(progressDownloadEnd - progressDownloadStart)
	info, err := r.fetcher.Fetch(ctx, job.URL, func(frac float64) {
		r.setProgress(id, progressDownloadStart+int(span*frac))
	})
	if err != nil {
		if ctx.Err() != nil {
			r.failJob(id, jobs.ErrKindSystem, "job cancelled")
			return nil, false
		}
		var dlErr *fetch.DownloadError
		if errors.As(err, &dlErr) {
			r.failJob(id, jobs.ErrKindDownload, dlErr.Message)
		} else {
			r.failJob(id, jobs.ErrKindDownload, err.Error())
		}
		return nil, false
	}

	_, err = r.store.Update(context.Background(), id, func(j *jobs.Job) error {
		j.Title = info.Title
		j.Channel = info.Channel
		j.SetProgress(progressDownloadEnd)
		if info.Cached {
			j.Message = "Using cached video, skipping download..."
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to record media info")
	}

	log.Info().Str("title", info.Title).Bool("cached", info.Cached).Msg("download complete")
	return info, true
}

// analyzeInput samples the media for the analyzers.
func (r *Runner) analyzeInput(ctx context.Context, id, videoPath string, log zerolog.Logger) (*media.Samples, bool) {
	if !r.advance(id, jobs.StageAnalyzing, progressAnalyzeStart, "Analyzing video for engaging content...") {
		return nil, false
	}

	samples, err := r.sampler.Sample(ctx, videoPath, r.workDir(id))
	if err != nil {
		if ctx.Err() != nil {
			r.failJob(id, jobs.ErrKindSystem, "job cancelled")
		} else {
			r.failJob(id, jobs.ErrKindAnalysis, err.Error())
		}
		return nil, false
	}
	return samples, true
}

// runAnalyzers fans the analyzers out over the shared samples. An
// analyzer that reports itself unavailable is skipped; its weight is
// redistributed at fusion time. Only a total blackout fails the job.
func (r *Runner) runAnalyzers(ctx context.Context, id string, samples *media.Samples, log zerolog.Logger) (fusion.Timeline, bool) {
	timeout := time.Duration(r.cfg.Analyzers.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	var (
		mu      sync.Mutex
		results = make(map[analyzer.Signal]analyzer.Series, len(r.analyzers))
		done    int
	)

	span := float64(progressAnalyzeEnd - progressAnalyzeStart)
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range r.analyzers {
		a := a
		g.Go(func() error {
			actx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			series, err := a.Analyze(actx, samples)
			switch {
			case errors.Is(err, analyzer.ErrUnavailable):
				log.Warn().Str("signal", string(a.Name())).Msg("signal unavailable")
			case errors.Is(err, context.DeadlineExceeded):
				log.Warn().Str("signal", string(a.Name())).Msg("analyzer timed out")
			case err != nil:
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(err).Str("signal", string(a.Name())).Msg("analyzer failed")
			}

			mu.Lock()
			if err == nil {
				results[a.Name()] = series
			}
			done++
			pct := progressAnalyzeStart + int(span*float64(done)/float64(len(r.analyzers)))
			mu.Unlock()

			r.setProgress(id, pct)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.failJob(id, jobs.ErrKindSystem, "job cancelled")
		return nil, false
	}

	if len(results) == 0 {
		r.failJob(id, jobs.ErrKindAnalysis, "no engagement signals could be computed")
		return nil, false
	}

	timeline, weights := fusion.Fuse(log, results, samples.Duration)
	log.Info().
		Int("signals", len(weights)).
		Int("points", len(timeline)).
		Msg("analysis complete")
	return timeline, true
}

// render cuts each selected segment into a vertical clip. Individual
// render failures are recorded on the segment; the job only fails if
// nothing rendered at all.
func (r *Runner) render(ctx context.Context, id, videoPath string, candidates []selector.Candidate, log zerolog.Logger) {
	if !r.advance(id, jobs.StageProcessing, progressAnalyzeEnd, "Rendering clips...") {
		return
	}

	outDir := r.outputDir(id)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		r.failJob(id, jobs.ErrKindSystem, fmt.Sprintf("create output dir: %v", err))
		return
	}

	width, height := ffmpeg.VerticalWidth, ffmpeg.VerticalHeight
	if !r.cfg.Render.HighQuality {
		width, height = ffmpeg.VerticalWidthLow, ffmpeg.VerticalHeightLow
	}

	segments := make([]jobs.Segment, 0, len(candidates))
	rendered := 0
	span := float64(progressComplete - progressAnalyzeEnd)
	for i, c := range candidates {
		if ctx.Err() != nil {
			r.failJob(id, jobs.ErrKindSystem, "job cancelled")
			return
		}
		r.setStatus(id, fmt.Sprintf("Processing clip %d of %d...", i+1, len(candidates)))

		seg := jobs.Segment{
			Index:   c.Index,
			Start:   c.Start,
			End:     c.End,
			Score:   c.Score,
			Reasons: c.Reasons,
		}
		output := filepath.Join(outDir, fmt.Sprintf("clip_%02d.mp4", c.Index+1))
		err := r.renderer.RenderVertical(ctx, videoPath, ffmpeg.VerticalOptions{
			Start:    c.Start,
			Duration: c.End - c.Start,
			Output:   output,
			Width:    width,
			Height:   height,
			CRF:      r.cfg.Render.CRF,
			Preset:   r.cfg.Render.Preset,
		})
		if err != nil {
			if ctx.Err() != nil {
				r.failJob(id, jobs.ErrKindSystem, "job cancelled")
				return
			}
			log.Warn().Err(err).Int("clip", c.Index+1).Msg("clip render failed")
			seg.RenderErr = err.Error()
		} else {
			seg.OutputPath = output
			rendered++

			thumb := filepath.Join(outDir, fmt.Sprintf("clip_%02d.jpg", c.Index+1))
			if err := r.renderer.Thumbnail(ctx, output, thumb, 1.0); err != nil {
				log.Warn().Err(err).Int("clip", c.Index+1).Msg("thumbnail extraction failed")
			} else {
				seg.ThumbnailPath = thumb
			}
		}
		segments = append(segments, seg)

		r.setProgress(id, progressAnalyzeEnd+int(span*float64(i+1)/float64(len(candidates))))
	}

	if rendered == 0 {
		_, err := r.store.Update(context.Background(), id, func(j *jobs.Job) error {
			j.Segments = segments
			return j.Fail(jobs.ErrKindRender, "all clip renders failed")
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to record render failure")
		}
		return
	}

	_, err := r.store.Update(context.Background(), id, func(j *jobs.Job) error {
		if err := j.Advance(jobs.StageCompleted); err != nil {
			return err
		}
		j.Segments = segments
		j.SetProgress(progressComplete)
		j.Message = fmt.Sprintf("Generated %d clips", rendered)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to complete job")
		return
	}

	log.Info().Int("rendered", rendered).Int("selected", len(candidates)).Msg("job complete")
}

// advance moves the job to the next stage. A false return means the
// job is gone or in a state that forbids the move; the caller stops.
func (r *Runner) advance(id string, next jobs.Stage, pct int, message string) bool {
	_, err := r.store.Update(context.Background(), id, func(j *jobs.Job) error {
		if err := j.Advance(next); err != nil {
			return err
		}
		j.SetProgress(pct)
		j.Message = message
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Str("job", id).Str("stage", string(next)).Msg("stage transition failed")
		return false
	}
	return true
}

func (r *Runner) setProgress(id string, pct int) {
	_, _ = r.store.Update(context.Background(), id, func(j *jobs.Job) error {
		j.SetProgress(pct)
		return nil
	})
}

func (r *Runner) setStatus(id, message string) {
	_, _ = r.store.Update(context.Background(), id, func(j *jobs.Job) error {
		j.Message = message
		return nil
	})
}

func (r *Runner) failJob(id string, kind jobs.ErrorKind, message string) {
	_, err := r.store.Update(context.Background(), id, func(j *jobs.Job) error {
		return j.Fail(kind, message)
	})
	if err != nil {
		r.logger.Error().Err(err).Str("job", id).Msg("failed to mark job failed")
	}
}
