package ffmpeg

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// SceneDetectionOptions contains options for scene detection
type SceneDetectionOptions struct {
	Threshold      float64 // FFmpeg scene score (0.0-1.0)
	MinSceneLength float64 // Minimum seconds between two cuts, 0 keeps every cut
	Duration       float64 // Input duration, only used for progress
	OnProgress     ProgressCallback
}

// DetectSceneCuts returns the timestamps (seconds, ascending) where the scene score
// exceeds the threshold
func (e *Executor) DetectSceneCuts(ctx context.Context, input string, opts SceneDetectionOptions) ([]float64, error) {
	if opts.Threshold <= 0 || opts.Threshold >= 1 {
		return nil, fmt.Errorf("scene threshold must be within (0,1), got %g", opts.Threshold)
	}

	args := []string{"-hide_banner", "-nostdin"}
	args = append(args, e.threadArgs()...)
	args = append(args,
		"-i", input,
		"-an",
		"-vf", fmt.Sprintf("select='gt(scene,%f)',showinfo", opts.Threshold),
		"-f", "null",
		"-",
	)

	e.logger.Info("Detecting scenes",
		zap.String("input", input),
		zap.Float64("threshold", opts.Threshold),
		zap.Float64("min_scene_length", opts.MinSceneLength),
	)

	var lines []string
	err := e.Execute(ctx, ExecuteOptions{
		Args:       args,
		Duration:   opts.Duration,
		OnProgress: opts.OnProgress,
		OnLine: func(line string) {
			if strings.Contains(line, "pts_time:") {
				lines = append(lines, line)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect scenes: %w", err)
	}

	cuts := enforceMinSceneLength(parseSceneOutput(strings.Join(lines, "\n")), opts.MinSceneLength)

	e.logger.Info("Scene detection completed",
		zap.Int("cuts_found", len(cuts)),
	)

	return cuts, nil
}

// parseSceneOutput parses showinfo lines into ascending cut timestamps
func parseSceneOutput(output string) []float64 {
	var cuts []float64

	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, "pts_time:")
		if idx < 0 {
			continue
		}
		fields := strings.Fields(line[idx+len("pts_time:"):])
		if len(fields) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || t < 0 {
			continue
		}
		cuts = append(cuts, t)
	}

	sort.Float64s(cuts)
	return cuts
}

// enforceMinSceneLength drops cuts closer than minLen seconds to the previous kept cut.
// The stream start counts as a cut.
func enforceMinSceneLength(cuts []float64, minLen float64) []float64 {
	if minLen <= 0 {
		return cuts
	}

	kept := make([]float64, 0, len(cuts))
	prev := 0.0
	for _, c := range cuts {
		if c-prev < minLen {
			continue
		}
		kept = append(kept, c)
		prev = c
	}
	return kept
}
