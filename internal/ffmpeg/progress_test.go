package ffmpeg

import (
	"math"
	"strings"
	"testing"
)

func TestParseFFmpegTime(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{"00:00:05.50", 5.5, false},
		{"00:01:30.00", 90.0, false},
		{"01:23:45.67", 5025.67, false},
		{"00:00:01.500000", 1.5, false},
		{"-00:00:06.46", -6.46, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := parseFFmpegTime(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("parseFFmpegTime(%q) = %f, want %f", tt.input, result, tt.expected)
			}
		})
	}
}

func TestProgressParser_ParseLine(t *testing.T) {
	parser := NewProgressParser(100.0)

	tests := []struct {
		name     string
		line     string
		expected float64
	}{
		{
			name:     "video progress",
			line:     "frame=  123 fps= 45 q=28.0 size=  1024kB time=00:00:50.00 bitrate= 123.4kbits/s",
			expected: 0.5,
		},
		{
			name:     "null muxer progress",
			line:     "frame= 2500 fps=310 q=-0.0 Lsize=N/A time=00:00:25.00 bitrate=N/A speed=3.1x",
			expected: 0.25,
		},
		{
			name:     "past the end is capped",
			line:     "size=  233422kB time=00:01:45.00 bitrate= 301.1kbits/s speed= 353x",
			expected: 1.0,
		},
		{
			name:     "no progress",
			line:     "Random FFmpeg output without time",
			expected: -1,
		},
		{
			name:     "negative time",
			line:     "frame=  123 fps= 45 q=28.0 size=  1024kB time=-00:00:06.46 bitrate= 123.4kbits/s",
			expected: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parser.ParseLine(tt.line)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ParseLine() = %f, want %f", result, tt.expected)
			}
		})
	}
}

func TestProgressParser_UnknownDuration(t *testing.T) {
	parser := NewProgressParser(0)
	line := "frame=  123 fps= 45 q=28.0 size=  1024kB time=00:00:50.00 bitrate= 123.4kbits/s"
	if got := parser.ParseLine(line); got != -1 {
		t.Errorf("ParseLine() without duration = %f, want -1", got)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
		errors bool
	}{
		{"", 0, false, false},
		{"  ", 0, false, false},
		{"00:00:00", 0, true, false},
		{"01:02:03", 3723, true, false},
		{"1:2", 0, false, true},
		{"aa:00:00", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok, err := ParseClock(tt.input)
			if tt.errors != (err != nil) {
				t.Fatalf("ParseClock(%q) error = %v", tt.input, err)
			}
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseClock(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseFFmpegError(t *testing.T) {
	tests := []struct {
		name     string
		stderr   string
		contains string
	}{
		{
			name:     "file not found",
			stderr:   "ffmpeg version 4.4\nInput #0, mov,mp4,m4a,3gp,3g2,mj2, from 'test.mp4':\ntest.mp4: No such file or directory",
			contains: "No such",
		},
		{
			name:     "invalid codec",
			stderr:   "ffmpeg version 4.4\nUnknown encoder 'invalid_codec'\nError initializing output stream",
			contains: "Error",
		},
		{
			name:     "fallback to last line",
			stderr:   "ffmpeg version 4.4\nsomething odd happened\n\n",
			contains: "something odd happened",
		},
		{
			name:     "empty",
			stderr:   "",
			contains: "Unknown FFmpeg error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseFFmpegError(tt.stderr)
			if !strings.Contains(result, tt.contains) {
				t.Errorf("ParseFFmpegError() = %q, want it to contain %q", result, tt.contains)
			}
		})
	}
}
