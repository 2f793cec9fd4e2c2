package ffmpeg

import (
	"context"
	"fmt"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
	"github.com/ytppt/slidesweep/internal/models"
	"go.uber.org/zap"
)

// cropArgs builds the argument list that crops input to the normalized rectangle,
// keeping the audio stream untouched
func cropArgs(input, output string, crop models.Crop, threads int) []string {
	kwargs := ffmpeggo.KwArgs{
		"vf":  crop.FilterExpr(),
		"c:a": "copy",
	}
	if threads > 0 {
		kwargs["threads"] = threads
	}

	return ffmpeggo.Input(input).
		Output(output, kwargs).
		OverWriteOutput().
		GetArgs()
}

// CropVideo writes a re-encoded copy of input restricted to the crop rectangle
func (e *Executor) CropVideo(ctx context.Context, input, output string, crop models.Crop, duration float64, onProgress ProgressCallback) error {
	if err := crop.Validate(); err != nil {
		return err
	}

	args := append([]string{"-hide_banner"}, cropArgs(input, output, crop, e.threads)...)

	e.logger.Info("Cropping video",
		zap.String("input", input),
		zap.String("output", output),
		zap.String("crop", crop.String()),
	)

	if err := e.Execute(ctx, ExecuteOptions{
		Args:       args,
		Duration:   duration,
		OnProgress: onProgress,
	}); err != nil {
		return fmt.Errorf("failed to crop video: %w", err)
	}

	return nil
}
