package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/ytppt/slidesweep/internal/models"
)

// Config mirrors the project config.json; flat keys are the ones the desktop tool writes
type Config struct {
	VideoDir  string `mapstructure:"video_dir"`
	OutputDir string `mapstructure:"output_dir"`

	CropLeft   float64 `mapstructure:"crop_left"`
	CropTop    float64 `mapstructure:"crop_top"`
	CropWidth  float64 `mapstructure:"crop_width"`
	CropHeight float64 `mapstructure:"crop_height"`

	StartTime string `mapstructure:"start_time"` // HH:MM:SS, empty means from the beginning
	EndTime   string `mapstructure:"end_time"`

	OutputPPTOnly    bool `mapstructure:"output_ppt_only"`
	OutputFullScreen bool `mapstructure:"output_full_screen"`
	OutputPPTX       bool `mapstructure:"output_pptx"`
	ExtractImages    bool `mapstructure:"extract_images"`
	ForceCrop        bool `mapstructure:"force_crop"`

	FFmpeg  FFmpegConfig  `mapstructure:"ffmpeg"`
	Sweep   SweepConfig   `mapstructure:"sweep"`
	Publish PublishConfig `mapstructure:"publish"`
	Server  ServerConfig  `mapstructure:"server"`
}

type FFmpegConfig struct {
	Path         string `mapstructure:"path"`
	ProbePath    string `mapstructure:"probe_path"`
	Threads      int    `mapstructure:"threads"`
	FrameQuality int    `mapstructure:"frame_quality"`
}

type SweepConfig struct {
	OutBase        string `mapstructure:"out_base"`
	ExistingPolicy string `mapstructure:"existing_policy"` // "replace" or "fail"
	MetricsFile    string `mapstructure:"metrics_file"`    // Relative to the out-base, empty disables
}

type PublishConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CorsOrigins []string `mapstructure:"cors_origins"`
}

// Crop returns the configured crop rectangle
func (c *Config) Crop() models.Crop {
	return models.Crop{
		Left:   c.CropLeft,
		Top:    c.CropTop,
		Width:  c.CropWidth,
		Height: c.CropHeight,
	}
}

// Load reads config.json (or configPath), .env and SLIDESWEEP_* environment variables
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SLIDESWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, defaults apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Older configs only carry output_dir, the video was downloaded next to the slides
	if !v.InConfig("video_dir") && v.InConfig("output_dir") {
		cfg.VideoDir = cfg.OutputDir
	}

	cfg.VideoDir = os.ExpandEnv(cfg.VideoDir)
	cfg.OutputDir = os.ExpandEnv(cfg.OutputDir)
	cfg.Sweep.OutBase = os.ExpandEnv(cfg.Sweep.OutBase)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("video_dir", "./video_output")
	v.SetDefault("output_dir", "./ppt_output")

	// Crop defaults: slides on the right, speaker on the left
	v.SetDefault("crop_left", 0.35)
	v.SetDefault("crop_top", 0.0)
	v.SetDefault("crop_width", 0.65)
	v.SetDefault("crop_height", 1.0)

	v.SetDefault("start_time", "")
	v.SetDefault("end_time", "")
	v.SetDefault("output_ppt_only", true)
	v.SetDefault("output_full_screen", false)
	v.SetDefault("output_pptx", true)
	v.SetDefault("extract_images", true)
	v.SetDefault("force_crop", false)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ffmpeg.probe_path", "ffprobe")
	v.SetDefault("ffmpeg.threads", 0) // auto
	v.SetDefault("ffmpeg.frame_quality", 2)

	// Sweep defaults
	v.SetDefault("sweep.out_base", "./ppt_output/param_sweep")
	v.SetDefault("sweep.existing_policy", "replace")
	v.SetDefault("sweep.metrics_file", "metrics.prom")

	// Publishing is off until an endpoint is set
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.use_ssl", false)
	v.SetDefault("publish.bucket", "slidesweep")
	v.SetDefault("publish.prefix", "")

	// Results server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.cors_origins", []string{"*"})
}
