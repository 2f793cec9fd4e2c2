package services

import (
	"fmt"
	"os"

	"github.com/ytppt/slidesweep/internal/config"
	"github.com/ytppt/slidesweep/internal/ffmpeg"
	"github.com/ytppt/slidesweep/internal/metrics"
	"github.com/ytppt/slidesweep/internal/models"
	"github.com/ytppt/slidesweep/internal/publish"
	"go.uber.org/zap"
)

// Services holds all application services
type Services struct {
	FFmpeg     *ffmpeg.Executor
	Crop       *CropService
	Extraction *ExtractionService
	Sweep      *SweepService
	Metrics    *metrics.Collector
	Logger     *zap.Logger
}

// NewServices wires the sweep pipeline from configuration
func NewServices(cfg *config.Config, logger *zap.Logger) (*Services, error) {
	executor := ffmpeg.NewExecutor(cfg.FFmpeg.Path, cfg.FFmpeg.ProbePath, cfg.FFmpeg.Threads, logger)
	collector := metrics.New()

	crop := NewCropService(executor, logger)
	extraction := NewExtractionService(executor, cfg.FFmpeg.FrameQuality, logger)
	sweep := NewSweepService(extraction, crop, logger).
		WithMetrics(collector, cfg.Sweep.MetricsFile).
		WithProgress(os.Stderr)

	if cfg.Publish.Endpoint != "" {
		publisher, err := publish.New(publish.Config{
			Endpoint:  cfg.Publish.Endpoint,
			AccessKey: cfg.Publish.AccessKey,
			SecretKey: cfg.Publish.SecretKey,
			UseSSL:    cfg.Publish.UseSSL,
			Bucket:    cfg.Publish.Bucket,
			Prefix:    cfg.Publish.Prefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to set up publishing: %w", err)
		}
		sweep.WithPublisher(publisher)
	}

	return &Services{
		FFmpeg:     executor,
		Crop:       crop,
		Extraction: extraction,
		Sweep:      sweep,
		Metrics:    collector,
		Logger:     logger,
	}, nil
}

// NewSweepRequest fills a request from configuration with the default parameter sets
func NewSweepRequest(cfg *config.Config) SweepRequest {
	return SweepRequest{
		VideoDir:  cfg.VideoDir,
		OutBase:   cfg.Sweep.OutBase,
		Crop:      cfg.Crop(),
		Sets:      models.DefaultParameterSets(),
		StartTime: cfg.StartTime,
		EndTime:   cfg.EndTime,
		Outputs: OutputOptions{
			PPTOnly:    cfg.OutputPPTOnly,
			FullScreen: cfg.OutputFullScreen,
			PPTX:       cfg.OutputPPTX,
			Images:     cfg.ExtractImages,
		},
		ExistingPolicy: cfg.Sweep.ExistingPolicy,
		ForceCrop:      cfg.ForceCrop,
	}
}
