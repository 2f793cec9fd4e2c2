package ffmpeg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "frame=  123 fps= 45 q=28.0 size=  1024kB time=00:01:23.45 bitrate= 123.4kbits/s"
	videoProgressPattern = regexp.MustCompile(`frame=\s*\S+\s+fps=\s*\S+\s+q=\s*\S+\s+(?:size|Lsize)=\s*\S+\s+time=\s*(\S+)\s+`)
	// "size=  233422kB time=01:45:50.68 bitrate= 301.1kbits/s", also the null muxer's "size=N/A time=..."
	otherProgressPattern = regexp.MustCompile(`(?:size|Lsize)=\s*\S+\s+time=\s*(\S+)\s+`)
	ffmpegTimePattern    = regexp.MustCompile(`^(-?)(\d+):(\d+):(\d+)\.(\d+)$`)
)

// ProgressParser parses FFmpeg stderr output for progress information
type ProgressParser struct {
	duration float64
}

// NewProgressParser creates a new progress parser
func NewProgressParser(duration float64) *ProgressParser {
	return &ProgressParser{
		duration: duration,
	}
}

// ParseLine parses a single line of FFmpeg output and returns progress (0-1)
// Returns -1 if line doesn't contain progress information
func (p *ProgressParser) ParseLine(line string) float64 {
	if p.duration <= 0 {
		return -1
	}

	matches := videoProgressPattern.FindStringSubmatch(line)
	if len(matches) == 0 {
		matches = otherProgressPattern.FindStringSubmatch(line)
	}
	if len(matches) < 2 {
		return -1
	}

	currentTime, err := parseFFmpegTime(matches[1])
	if err != nil || currentTime < 0 {
		return -1
	}

	progress := currentTime / p.duration
	if progress > 1 {
		progress = 1
	}

	return progress
}

// parseFFmpegTime parses FFmpeg time format (HH:MM:SS.MS) to seconds
func parseFFmpegTime(timeStr string) (float64, error) {
	matches := ffmpegTimePattern.FindStringSubmatch(timeStr)
	if len(matches) != 6 {
		return 0, fmt.Errorf("invalid time format: %s", timeStr)
	}

	sign := matches[1]
	hours, _ := strconv.Atoi(matches[2])
	minutes, _ := strconv.Atoi(matches[3])
	seconds, _ := strconv.Atoi(matches[4])
	fraction, _ := strconv.ParseFloat("0."+matches[5], 64)

	totalSeconds := float64(hours*3600+minutes*60+seconds) + fraction

	if sign == "-" {
		totalSeconds = -totalSeconds
	}

	return totalSeconds, nil
}

// ParseClock parses an HH:MM:SS clock value into seconds.
// An empty string reports ok=false.
func ParseClock(s string) (seconds float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false, fmt.Errorf("time %q is not HH:MM:SS", s)
	}

	var vals [3]int
	for i, p := range parts {
		v, convErr := strconv.Atoi(p)
		if convErr != nil || v < 0 {
			return 0, false, fmt.Errorf("time %q is not HH:MM:SS", s)
		}
		vals[i] = v
	}

	return float64(vals[0]*3600 + vals[1]*60 + vals[2]), true, nil
}

// ParseFFmpegError extracts error message from FFmpeg stderr output
func ParseFFmpegError(stderr string) string {
	lines := strings.Split(stderr, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])

		if strings.Contains(line, "error") ||
			strings.Contains(line, "Error") ||
			strings.Contains(line, "Invalid") ||
			strings.Contains(line, "failed") ||
			strings.Contains(line, "No such") {
			return line
		}
	}

	// If no specific error found, return last non-empty line
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return line
		}
	}

	return "Unknown FFmpeg error"
}
