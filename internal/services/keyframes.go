package services

import (
	"fmt"
	"sort"

	"github.com/ytppt/slidesweep/internal/ffmpeg"
	"github.com/ytppt/slidesweep/internal/models"
)

// Window limits keyframes to [Start, End] seconds; End <= 0 runs to the end of the video
type Window struct {
	Start float64
	End   float64
}

// ParseWindow reads HH:MM:SS start and end times, empty strings leave that side open
func ParseWindow(start, end string) (Window, error) {
	var w Window

	s, ok, err := ffmpeg.ParseClock(start)
	if err != nil {
		return w, fmt.Errorf("invalid start time: %w", err)
	}
	if ok {
		w.Start = s
	}

	e, ok, err := ffmpeg.ParseClock(end)
	if err != nil {
		return w, fmt.Errorf("invalid end time: %w", err)
	}
	if ok {
		if e <= w.Start {
			return w, fmt.Errorf("end time %s is not after start time %s", end, start)
		}
		w.End = e
	}
	return w, nil
}

// Bounds clamps the window to a video of the given duration
func (w Window) Bounds(duration float64) (float64, float64, error) {
	start, end := w.Start, w.End
	if end <= 0 || end > duration {
		end = duration
	}
	if start < 0 {
		start = 0
	}
	if start >= end {
		return 0, 0, fmt.Errorf("time window %.1fs-%.1fs is outside the %.1fs video", w.Start, w.End, duration)
	}
	return start, end, nil
}

// sceneMidpoints splits [0,duration] at the cuts and returns the middle of every
// scene that lasts at least minScene seconds
func sceneMidpoints(cuts []float64, duration, minScene float64) []float64 {
	bounds := []float64{0}
	for _, c := range cuts {
		if c > bounds[len(bounds)-1] && c < duration {
			bounds = append(bounds, c)
		}
	}
	bounds = append(bounds, duration)

	var mids []float64
	for i := 0; i+1 < len(bounds); i++ {
		length := bounds[i+1] - bounds[i]
		if minScene > 0 && length < minScene {
			continue
		}
		mids = append(mids, bounds[i]+length/2)
	}
	return mids
}

func clipToWindow(times []float64, start, end float64) []float64 {
	var out []float64
	for _, t := range times {
		if t >= start && t <= end {
			out = append(out, t)
		}
	}
	return out
}

// collapseMinGap drops keyframes closer than gap to the previous kept one
func collapseMinGap(times []float64, gap float64) []float64 {
	var out []float64
	for _, t := range times {
		if len(out) == 0 || t-out[len(out)-1] >= gap {
			out = append(out, t)
		}
	}
	return out
}

// fillGaps adds a keyframe every interval seconds inside gaps longer than maxGap.
// The window edges count as gap boundaries.
func fillGaps(times []float64, start, end, maxGap, interval float64) []float64 {
	if maxGap <= 0 || interval <= 0 {
		return times
	}

	edges := make([]float64, 0, len(times)+2)
	edges = append(edges, start)
	edges = append(edges, times...)
	edges = append(edges, end)

	out := append([]float64(nil), times...)
	for i := 0; i+1 < len(edges); i++ {
		a, b := edges[i], edges[i+1]
		if b-a <= maxGap {
			continue
		}
		for t := a + interval; t < b; t += interval {
			out = append(out, t)
		}
	}
	sort.Float64s(out)
	return out
}

// SelectKeyframes turns detected cuts into the timestamps frames are taken at
func SelectKeyframes(cuts []float64, duration float64, set models.ParameterSet, start, end float64) []float64 {
	times := sceneMidpoints(cuts, duration, set.StaticThreshold)
	times = clipToWindow(times, start, end)
	times = collapseMinGap(times, set.MinGap)
	times = fillGaps(times, start, end, set.MaxGapSec, set.IntervalFillSec)

	if len(times) == 0 {
		return []float64{start}
	}
	return times
}
