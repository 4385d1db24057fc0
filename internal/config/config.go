package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	TempDir       string `yaml:"temp_dir"`
	MaxActiveJobs int    `yaml:"max_active_jobs"`

	// Source constraints
	MaxSourceDuration int `yaml:"max_source_duration_sec"`
	RetentionHours    int `yaml:"retention_hours"`

	// Selection settings
	MinSegmentGap float64 `yaml:"min_segment_gap_sec"`

	// Sampling settings
	Sampling SamplingConfig `yaml:"sampling"`

	// Analyzer settings
	Analyzers AnalyzerConfig `yaml:"analyzers"`

	// Render settings
	Render RenderConfig `yaml:"render"`

	// Job store settings
	Store StoreConfig `yaml:"store"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Fetcher settings
	Fetch FetchConfig `yaml:"fetch"`

	// Log file settings (console output is always on)
	Log LogConfig `yaml:"log"`
}

type SamplingConfig struct {
	FrameInterval   float64 `yaml:"frame_interval_sec"`
	FaceInterval    float64 `yaml:"face_interval_sec"`
	AudioSampleRate int     `yaml:"audio_sample_rate"`
	FrameWidth      int     `yaml:"frame_width"`
	FrameHeight     int     `yaml:"frame_height"`
}

type AnalyzerConfig struct {
	TimeoutSec int            `yaml:"timeout_sec"`
	Semantic   SemanticConfig `yaml:"semantic"`
}

type SemanticConfig struct {
	Enabled        bool    `yaml:"enabled"`
	BaseURL        string  `yaml:"base_url" env:"SEMANTIC_BASE_URL"`
	Model          string  `yaml:"model"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	SampleInterval float64 `yaml:"sample_interval_sec"`
	MaxFrames      int     `yaml:"max_frames"`
}

type RenderConfig struct {
	HighQuality bool   `yaml:"high_quality"`
	CRF         int    `yaml:"crf"`
	Preset      string `yaml:"preset"`
}

type StoreConfig struct {
	Backend   string `yaml:"backend"` // memory | redis
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`
}

type FFmpegConfig struct {
	Threads int `yaml:"threads"`
}

type FetchConfig struct {
	YTDLPPath string `yaml:"ytdlp_path"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		cfg.applyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// applyEnv overrides endpoint-ish settings from the environment
func (c *Config) applyEnv() {
	if v := os.Getenv("TEMP_DIR"); v != "" {
		c.TempDir = v
	}
	if v := os.Getenv("SEMANTIC_BASE_URL"); v != "" {
		c.Analyzers.Semantic.BaseURL = v
	}
	if v := os.Getenv("SEMANTIC_MODEL"); v != "" {
		c.Analyzers.Semantic.Model = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.RedisAddr = v
	}
}

func defaultConfig() *Config {
	return &Config{
		TempDir:           "./temp",
		MaxActiveJobs:     2,
		MaxSourceDuration: 10800,
		RetentionHours:    24,
		MinSegmentGap:     2.0,
		Sampling: SamplingConfig{
			FrameInterval:   0.5,
			FaceInterval:    1.0,
			AudioSampleRate: 22050,
			FrameWidth:      160,
			FrameHeight:     90,
		},
		Analyzers: AnalyzerConfig{
			TimeoutSec: 120,
			Semantic: SemanticConfig{
				Enabled:        true,
				BaseURL:        "http://localhost:11434/v1",
				Model:          "llava",
				APIKeyEnv:      "SEMANTIC_API_KEY",
				SampleInterval: 3.0,
				MaxFrames:      50,
			},
		},
		Render: RenderConfig{
			HighQuality: true,
			CRF:         23,
			Preset:      "medium",
		},
		Store: StoreConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
		},
		FFmpeg: FFmpegConfig{
			Threads: 0,
		},
		Fetch: FetchConfig{
			YTDLPPath: "yt-dlp",
		},
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".shortforge", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
