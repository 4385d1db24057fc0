package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keagan/shortforge/internal/analyzer"
	"github.com/keagan/shortforge/internal/cleanup"
	"github.com/keagan/shortforge/internal/config"
	"github.com/keagan/shortforge/internal/fetch"
	"github.com/keagan/shortforge/internal/ffmpeg"
	"github.com/keagan/shortforge/internal/fusion"
	"github.com/keagan/shortforge/internal/jobs"
	"github.com/keagan/shortforge/internal/logging"
	"github.com/keagan/shortforge/internal/media"
	"github.com/keagan/shortforge/internal/pipeline"
	"github.com/keagan/shortforge/internal/selector"
	"github.com/keagan/shortforge/pkg/util"
)

var (
	cfgFile string
	verbose bool

	clipDuration int
	clipCount    int
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shortforge",
	Short: "shortforge - YouTube to vertical shorts clip engine",
	Long:  "Downloads a YouTube video, scores it for engagement across audio, motion, scene, face and semantic signals, and renders the best moments as vertical clips.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		logging.Init(verbose, logging.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		})

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.shortforge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	processCmd.Flags().IntVar(&clipDuration, "duration", 60, "clip length in seconds (30, 60, 90, 120, 180)")
	processCmd.Flags().IntVar(&clipCount, "count", 5, "clips to generate (5, 10, 15)")
	analyzeCmd.Flags().IntVar(&clipDuration, "duration", 60, "clip length in seconds (30, 60, 90, 120, 180)")
	analyzeCmd.Flags().IntVar(&clipCount, "count", 5, "segments to report (5, 10, 15)")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
}

var processCmd = &cobra.Command{
	Use:   "process [youtube url]",
	Short: "Generate vertical clips from a YouTube video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		runner, err := buildRunner(cfg, store)
		if err != nil {
			return err
		}

		// sweep stale artifacts from previous runs in the background
		go func() {
			maxAge := time.Duration(cfg.RetentionHours) * time.Hour
			if _, err := cleanup.Sweep(log.Logger, cfg.TempDir, maxAge); err != nil {
				log.Warn().Err(err).Msg("startup cleanup failed")
			}
		}()

		job, err := runner.Submit(ctx, args[0], clipDuration, clipCount)
		if err != nil {
			return err
		}
		log.Info().Str("job", job.ID).Msg("processing started")

		final, err := watchJob(ctx, store, job.ID)
		if err != nil {
			return err
		}
		runner.Wait()

		if final.Stage == jobs.StageFailed {
			return fmt.Errorf("job failed: %s", final.Err)
		}

		if len(final.Segments) == 0 {
			fmt.Println("No engaging segments found.")
			return nil
		}
		fmt.Printf("Generated %d clips from %q:\n", len(final.Segments), final.Title)
		for _, seg := range final.Segments {
			if seg.RenderErr != "" {
				fmt.Printf("  %2d. %s - %s  (render failed: %s)\n",
					seg.Index+1, util.FormatSeconds(seg.Start), util.FormatSeconds(seg.End), seg.RenderErr)
				continue
			}
			fmt.Printf("  %2d. %s - %s  score %.0f  %s\n",
				seg.Index+1, util.FormatSeconds(seg.Start), util.FormatSeconds(seg.End), seg.Score, seg.OutputPath)
			for _, reason := range seg.Reasons {
				fmt.Printf("      - %s\n", reason)
			}
		}
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [youtube url]",
	Short: "Score a video and print its best segments without rendering",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		if !pipeline.ValidDurations[clipDuration] {
			return fmt.Errorf("unsupported clip duration %ds", clipDuration)
		}
		if !pipeline.ValidCounts[clipCount] {
			return fmt.Errorf("unsupported clip count %d", clipCount)
		}

		comps, err := buildComponents(cfg)
		if err != nil {
			return err
		}

		info, err := comps.fetcher.Fetch(ctx, args[0], nil)
		if err != nil {
			return err
		}

		samples, err := comps.sampler.Sample(ctx, info.Path, filepath.Join(cfg.TempDir, "work", "analyze"))
		if err != nil {
			return err
		}

		timeout := time.Duration(cfg.Analyzers.TimeoutSec) * time.Second
		results := make(map[analyzer.Signal]analyzer.Series)
		for _, a := range comps.analyzers {
			actx, cancel := context.WithTimeout(ctx, timeout)
			series, err := a.Analyze(actx, samples)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("signal", string(a.Name())).Msg("signal skipped")
				continue
			}
			results[a.Name()] = series
		}
		if len(results) == 0 {
			return fmt.Errorf("no engagement signals could be computed")
		}

		timeline, _ := fusion.Fuse(log.Logger, results, samples.Duration)
		candidates := selector.Select(log.Logger, timeline, selector.Options{
			Duration: float64(clipDuration),
			Count:    clipCount,
			MinGap:   cfg.MinSegmentGap,
		})
		if len(candidates) == 0 {
			fmt.Println("No engaging segments found.")
			return nil
		}

		fmt.Printf("Top %d segments of %q:\n", len(candidates), info.Title)
		for _, c := range candidates {
			fmt.Printf("  %2d. %s - %s  score %.0f\n",
				c.Index+1, util.FormatSeconds(c.Start), util.FormatSeconds(c.End), c.Score)
			for _, reason := range c.Reasons {
				fmt.Printf("      - %s\n", reason)
			}
		}
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Job management commands",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		list, err := store.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No jobs.")
			return nil
		}
		for _, job := range list {
			fmt.Printf("%s  %-11s  %3d%%  %s\n", job.ID, job.Stage, job.Progress, job.URL)
		}
		return nil
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete [job id]",
	Short: "Delete a job and its rendered clips",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		runner, err := buildRunner(cfg, store)
		if err != nil {
			return err
		}
		if err := runner.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Job deleted.")
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove cached downloads and stale job artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		maxAge := time.Duration(cfg.RetentionHours) * time.Hour
		stats, err := cleanup.Sweep(log.Logger, cfg.TempDir, maxAge)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d files and %d job directories, freed %.1f MiB.\n",
			stats.RemovedFiles, stats.RemovedDirs, float64(stats.FreedBytes)/(1024*1024))

		used, err := cleanup.Usage(cfg.TempDir)
		if err != nil {
			return err
		}
		fmt.Printf("Workspace now uses %.1f MiB.\n", float64(used)/(1024*1024))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
	configCmd.AddCommand(configShowCmd)
}

// openStore builds the configured job store. The returned func closes
// it; for the memory backend that is a no-op.
func openStore(ctx context.Context, cfg *config.Config) (jobs.Store, func(), error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return jobs.NewMemoryStore(), func() {}, nil
	case "redis":
		ttl := time.Duration(cfg.RetentionHours) * time.Hour
		store, err := jobs.NewRedisStore(ctx, cfg.Store.RedisAddr, ttl)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// components bundles everything a pipeline needs besides the store.
type components struct {
	exec      *ffmpeg.Executor
	fetcher   *fetch.Downloader
	sampler   *media.Sampler
	analyzers []analyzer.Analyzer
}

func buildComponents(cfg *config.Config) (*components, error) {
	exec, err := ffmpeg.New(log.Logger, cfg.FFmpeg.Threads)
	if err != nil {
		return nil, err
	}
	fetcher, err := fetch.NewDownloader(log.Logger, cfg.Fetch.YTDLPPath, cfg.TempDir, cfg.MaxSourceDuration)
	if err != nil {
		return nil, err
	}
	sampler := media.NewSampler(log.Logger, exec, cfg.Sampling, cfg.Analyzers.Semantic)

	analyzers := []analyzer.Analyzer{
		analyzer.NewAudioAnalyzer(log.Logger),
		analyzer.NewMotionAnalyzer(log.Logger),
		analyzer.NewSceneAnalyzer(log.Logger),
		analyzer.NewFaceAnalyzer(log.Logger),
	}
	if cfg.Analyzers.Semantic.Enabled {
		analyzers = append(analyzers, analyzer.NewSemanticAnalyzer(log.Logger, cfg.Analyzers.Semantic))
	}

	return &components{exec: exec, fetcher: fetcher, sampler: sampler, analyzers: analyzers}, nil
}

func buildRunner(cfg *config.Config, store jobs.Store) (*pipeline.Runner, error) {
	comps, err := buildComponents(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(log.Logger, cfg, store, comps.fetcher, comps.sampler, comps.exec, comps.analyzers), nil
}

// watchJob polls the store until the job reaches a terminal stage,
// logging progress along the way.
func watchJob(ctx context.Context, store jobs.Store, id string) (*jobs.Job, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastProgress := -1
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			job, err := store.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if job.Progress != lastProgress {
				log.Info().Str("stage", string(job.Stage)).Int("progress", job.Progress).Msg(job.Message)
				lastProgress = job.Progress
			}
			if job.Stage.Terminal() {
				return job, nil
			}
		}
	}
}
