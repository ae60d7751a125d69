package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rskworld/videoset/internal/dataset"
)

// Config holds all configuration for the application
type Config struct {
	Dataset DatasetConfig `mapstructure:"dataset"`
	Video   VideoConfig   `mapstructure:"video"`
	Frames  FramesConfig  `mapstructure:"frames"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DatasetConfig holds split assignment configuration
type DatasetConfig struct {
	Splits dataset.SplitRatios `mapstructure:"splits"`
	Seed   int64               `mapstructure:"seed"`
	// Categories is an optional allow-list; StrictCategories decides
	// whether it restricts discovery or unions with it.
	Categories       []string `mapstructure:"categories"`
	StrictCategories bool     `mapstructure:"strict_categories"`
}

// VideoConfig holds video probing and processing configuration
type VideoConfig struct {
	Formats     []string         `mapstructure:"formats"`
	FFmpegPath  string           `mapstructure:"ffmpeg_path"`
	FFprobePath string           `mapstructure:"ffprobe_path"`
	Processing  ProcessingConfig `mapstructure:"processing"`
}

// ProcessingConfig holds the normalization target
type ProcessingConfig struct {
	ResizeWidth  int     `mapstructure:"resize_width"`
	ResizeHeight int     `mapstructure:"resize_height"`
	TargetFormat string  `mapstructure:"target_format"`
	MinDuration  float64 `mapstructure:"min_duration"`
	MaxDuration  float64 `mapstructure:"max_duration"`
	// AssumeFPS accepts fps-invalid sources at this assumed rate;
	// zero rejects them.
	AssumeFPS float64 `mapstructure:"assume_fps"`
}

// FramesConfig holds frame sampling configuration
type FramesConfig struct {
	FPS           float64 `mapstructure:"fps"`
	Stride        int     `mapstructure:"stride"`
	DefaultStride int     `mapstructure:"default_stride"`
	Format        string  `mapstructure:"format"`
	Quality       int     `mapstructure:"quality"`
}

// WorkerConfig holds batch processing configuration
type WorkerConfig struct {
	Count       int           `mapstructure:"count"`
	FileTimeout time.Duration `mapstructure:"file_timeout"`
}

// CatalogConfig holds the probe metadata catalog configuration
type CatalogConfig struct {
	// Path to the SQLite database. Empty disables the catalog.
	Path string `mapstructure:"path"`
}

// StorageConfig holds object storage configuration for dataset upload
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	Region          string `mapstructure:"region"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from file and environment variables. An
// empty path loads defaults only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate checks the configuration before any file I/O is attempted.
func (c *Config) Validate() error {
	if err := c.Dataset.Splits.Validate(); err != nil {
		return err
	}
	p := c.Video.Processing
	if (p.ResizeWidth > 0) != (p.ResizeHeight > 0) {
		return &dataset.ConfigError{
			Kind: dataset.ConfigInvalidResize,
			Msg:  fmt.Sprintf("resize needs both dimensions, got %dx%d", p.ResizeWidth, p.ResizeHeight),
		}
	}
	if p.ResizeWidth < 0 || p.ResizeHeight < 0 {
		return &dataset.ConfigError{
			Kind: dataset.ConfigInvalidResize,
			Msg:  fmt.Sprintf("resize dimensions must be non-negative, got %dx%d", p.ResizeWidth, p.ResizeHeight),
		}
	}
	seen := make(map[string]bool, len(c.Dataset.Categories))
	for _, name := range c.Dataset.Categories {
		if name == "" {
			return &dataset.ConfigError{
				Kind: dataset.ConfigInvalidCategories,
				Msg:  "category names must be non-empty",
			}
		}
		if seen[name] {
			return &dataset.ConfigError{
				Kind: dataset.ConfigInvalidCategories,
				Msg:  fmt.Sprintf("duplicate category %q", name),
			}
		}
		seen[name] = true
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Dataset defaults
	v.SetDefault("dataset.splits.train_ratio", 0.7)
	v.SetDefault("dataset.splits.test_ratio", 0.2)
	v.SetDefault("dataset.splits.validation_ratio", 0.1)
	v.SetDefault("dataset.seed", 42)
	v.SetDefault("dataset.strict_categories", false)

	// Video defaults
	v.SetDefault("video.formats", []string{"mp4", "mov", "avi", "mkv"})
	v.SetDefault("video.ffmpeg_path", "ffmpeg")
	v.SetDefault("video.ffprobe_path", "ffprobe")
	v.SetDefault("video.processing.resize_width", 224)
	v.SetDefault("video.processing.resize_height", 224)
	v.SetDefault("video.processing.target_format", "mp4")
	v.SetDefault("video.processing.min_duration", 1.0)
	v.SetDefault("video.processing.max_duration", 300.0)
	v.SetDefault("video.processing.assume_fps", 0.0)

	// Frames defaults
	v.SetDefault("frames.fps", 1.0)
	v.SetDefault("frames.stride", 0)
	v.SetDefault("frames.default_stride", 30)
	v.SetDefault("frames.format", "jpg")
	v.SetDefault("frames.quality", 2)

	// Worker defaults
	v.SetDefault("worker.count", 1)
	v.SetDefault("worker.file_timeout", "5m")

	// Catalog defaults
	v.SetDefault("catalog.path", "")

	// Storage defaults
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.bucket_name", "videoset")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", false)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
}
