package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ytppt/slidesweep/internal/ffmpeg"
	"github.com/ytppt/slidesweep/internal/models"
	"go.uber.org/zap"
)

// File names inside the video directory
const (
	SourceVideoName  = "video.mp4"
	CroppedVideoName = "video_cropped.mp4"
	CropRecordName   = "video_cropped.crop"
)

// VideoCropper is the part of the ffmpeg executor the crop step uses
type VideoCropper interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
	CropVideo(ctx context.Context, input, output string, crop models.Crop, duration float64, onProgress ffmpeg.ProgressCallback) error
}

// CropService produces the cropped copy of the source video that detection runs on
type CropService struct {
	media  VideoCropper
	logger *zap.Logger
}

func NewCropService(media VideoCropper, logger *zap.Logger) *CropService {
	return &CropService{
		media:  media,
		logger: logger,
	}
}

// EnsureCropped returns the path of the cropped video in videoDir, producing it when
// missing or forced. A full-frame crop needs no copy and returns an empty path.
func (s *CropService) EnsureCropped(ctx context.Context, videoDir string, crop models.Crop, force bool) (string, error) {
	if crop.IsFull() {
		return "", nil
	}

	source := filepath.Join(videoDir, SourceVideoName)
	output := filepath.Join(videoDir, CroppedVideoName)
	record := filepath.Join(videoDir, CropRecordName)

	if !force {
		if info, err := os.Stat(output); err == nil && info.Size() > 0 {
			previous, err := os.ReadFile(record)
			switch {
			case err != nil:
				s.logger.Warn("Reusing cropped video with unknown crop",
					zap.String("path", output), zap.String("requested", crop.String()))
				return output, nil
			case strings.TrimSpace(string(previous)) == crop.String():
				s.logger.Info("Reusing cropped video", zap.String("path", output))
				return output, nil
			default:
				s.logger.Warn("Crop changed, cropping again",
					zap.String("previous", strings.TrimSpace(string(previous))),
					zap.String("requested", crop.String()))
			}
		}
	}

	var duration float64
	if probe, err := s.media.Probe(ctx, source); err == nil {
		duration, _ = probe.GetDuration()
	} else {
		s.logger.Warn("Could not probe source video", zap.String("path", source), zap.Error(err))
	}

	// Only a finished crop is ever named video_cropped.mp4
	partial := filepath.Join(videoDir, "video_cropped.partial.mp4")
	lastLogged := -1
	err := s.media.CropVideo(ctx, source, partial, crop, duration, func(progress float64) {
		if pct := int(progress * 100); pct/10 > lastLogged/10 {
			lastLogged = pct
			s.logger.Debug("Crop progress", zap.Int("percent", pct))
		}
	})
	if err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("failed to crop video: %w", err)
	}

	if err := os.Rename(partial, output); err != nil {
		return "", fmt.Errorf("failed to store cropped video: %w", err)
	}
	if err := os.WriteFile(record, []byte(crop.String()+"\n"), 0644); err != nil {
		s.logger.Warn("Could not record applied crop", zap.String("path", record), zap.Error(err))
	}

	s.logger.Info("Cropped video ready", zap.String("path", output), zap.String("crop", crop.String()))
	return output, nil
}
