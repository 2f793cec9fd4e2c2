package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ProbeResult contains video metadata from FFprobe
type ProbeResult struct {
	Format  Format   `json:"format"`
	Streams []Stream `json:"streams"`
}

// Format contains container format information
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// Stream contains information about a media stream
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"` // video, audio, subtitle, data
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration,omitempty"`
	NbFrames     string `json:"nb_frames,omitempty"`
}

// Probe extracts metadata from a media file using FFprobe
func (e *Executor) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)

	e.logger.Debug("Executing FFprobe",
		zap.String("file", filePath),
	)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed on %s: %s", filePath, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (*ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(result.GetVideoStreams()) == 0 {
		return nil, fmt.Errorf("no video stream found")
	}
	return &result, nil
}

// GetDuration extracts the duration from probe result in seconds
func (p *ProbeResult) GetDuration() (float64, error) {
	raw := p.Format.Duration
	if raw == "" {
		if vs := p.GetVideoStreams(); len(vs) > 0 {
			raw = vs[0].Duration
		}
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return duration, nil
}

// GetFrameRate returns the frame rate of the first video stream
func (p *ProbeResult) GetFrameRate() (float64, error) {
	vs := p.GetVideoStreams()
	if len(vs) == 0 {
		return 0, fmt.Errorf("no video stream found")
	}

	for _, raw := range []string{vs[0].AvgFrameRate, vs[0].RFrameRate} {
		if fps, err := parseRational(raw); err == nil && fps > 0 {
			return fps, nil
		}
	}
	return 0, fmt.Errorf("no usable frame rate in %q / %q", vs[0].AvgFrameRate, vs[0].RFrameRate)
}

// GetVideoStreams returns all video streams
func (p *ProbeResult) GetVideoStreams() []Stream {
	var videos []Stream
	for _, stream := range p.Streams {
		if stream.CodecType == "video" {
			videos = append(videos, stream)
		}
	}
	return videos
}

// parseRational parses "30000/1001" or "25"
func parseRational(s string) (float64, error) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in %q", s)
	}
	return n / d, nil
}
