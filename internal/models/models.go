package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ParameterSet is one named bundle of scene-detection tuning options
type ParameterSet struct {
	ID                 string  `json:"id"`
	Threshold          float64 `json:"threshold"`           // Content threshold, lower detects more cuts
	MinSceneLen        int     `json:"min_scene_len"`       // Minimum scene length in frames
	StaticThreshold    float64 `json:"static_threshold"`    // Seconds a slide must stay on screen, 0 disables
	DuplicateThreshold float64 `json:"duplicate_threshold"` // Mean gray difference below which pages are duplicates, 0 disables
	MinGap             float64 `json:"min_gap"`             // Minimum seconds between two keyframes
	MaxGapSec          float64 `json:"max_gap_sec"`         // Gaps longer than this get interval frames, 0 disables
	IntervalFillSec    float64 `json:"interval_fill_sec"`   // Spacing of interval frames
}

// String renders the tuning options the way the sweep log prints them
func (p ParameterSet) String() string {
	return fmt.Sprintf("th=%g min=%d static=%g dup=%g gap=%g max_gap=%g fill=%g",
		p.Threshold, p.MinSceneLen, p.StaticThreshold, p.DuplicateThreshold,
		p.MinGap, p.MaxGapSec, p.IntervalFillSec)
}

// Validate checks a single parameter set
func (p ParameterSet) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("parameter set id is empty")
	}
	if strings.ContainsAny(p.ID, `/\`) || p.ID == "." || p.ID == ".." {
		return fmt.Errorf("parameter set id %q is not a plain directory name", p.ID)
	}
	// ffmpeg scene scores are 0-1, so the threshold stays below 100
	if !(p.Threshold > 0 && p.Threshold < 100) {
		return fmt.Errorf("parameter set %s: threshold must be in (0,100), got %g", p.ID, p.Threshold)
	}
	for _, v := range []float64{p.StaticThreshold, p.DuplicateThreshold, p.MinGap, p.MaxGapSec, p.IntervalFillSec} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("parameter set %s: tuning options must be finite", p.ID)
		}
	}
	if p.MinSceneLen < 0 || p.StaticThreshold < 0 || p.DuplicateThreshold < 0 ||
		p.MinGap < 0 || p.MaxGapSec < 0 || p.IntervalFillSec < 0 {
		return fmt.Errorf("parameter set %s: tuning options must not be negative", p.ID)
	}
	if p.MaxGapSec > 0 && p.IntervalFillSec <= 0 {
		return fmt.Errorf("parameter set %s: interval fill needs a positive interval", p.ID)
	}
	return nil
}

// ValidateParameterSets checks every set and that no two sets share an output directory
func ValidateParameterSets(sets []ParameterSet) error {
	if len(sets) == 0 {
		return fmt.Errorf("no parameter sets configured")
	}
	seen := make(map[string]bool, len(sets))
	for _, set := range sets {
		if err := set.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(set.ID)
		if seen[key] {
			return fmt.Errorf("duplicate parameter set id: %s", set.ID)
		}
		seen[key] = true
	}
	return nil
}

// DefaultParameterSets returns the fixed sweep configuration in execution order
func DefaultParameterSets() []ParameterSet {
	return []ParameterSet{
		{ID: "01_default", Threshold: 12, MinSceneLen: 5, StaticThreshold: 2.0, DuplicateThreshold: 1.5, MinGap: 0.5, MaxGapSec: 45, IntervalFillSec: 15},
		{ID: "02_sensitive", Threshold: 8, MinSceneLen: 3, MinGap: 0.5, MaxGapSec: 45, IntervalFillSec: 15},
		{ID: "03_medium", Threshold: 10, MinSceneLen: 5, MinGap: 0.5, MaxGapSec: 45, IntervalFillSec: 15},
		{ID: "04_low_filter", Threshold: 12, MinSceneLen: 5, MinGap: 0.5, MaxGapSec: 45, IntervalFillSec: 15},
		{ID: "05_conservative", Threshold: 18, MinSceneLen: 8, StaticThreshold: 5.0, DuplicateThreshold: 3.0, MinGap: 1.0, MaxGapSec: 0, IntervalFillSec: 15},
		{ID: "06_very_sensitive", Threshold: 6, MinSceneLen: 3, MinGap: 0.3, MaxGapSec: 45, IntervalFillSec: 15},
		{ID: "07_fill_aggressive", Threshold: 10, MinSceneLen: 5, MinGap: 0.5, MaxGapSec: 30, IntervalFillSec: 10},
		{ID: "08_no_fill", Threshold: 10, MinSceneLen: 5, MinGap: 0.5, MaxGapSec: 0, IntervalFillSec: 15},
	}
}

type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PagesUnknown marks the page count of a failed run
const PagesUnknown = -1

// SweepResult is the recorded outcome of one parameter set's run
type SweepResult struct {
	SetID     string        `json:"set_id"`
	Index     int           `json:"index"` // Position in the configured order, 0-based
	OutputDir string        `json:"output_dir"`
	Pages     int           `json:"pages"`
	Status    RunStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

func (r SweepResult) Failed() bool {
	return r.Status == RunStatusFailed
}

// Manifest describes one complete sweep, stored as summary.json in the out-base
type Manifest struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Video      string         `json:"video"`
	Crop       Crop           `json:"crop"`
	OutBase    string         `json:"out_base"`
	Sets       []ParameterSet `json:"sets"`
	Results    []SweepResult  `json:"results"` // Ranked, see services.RankResults
}

// Result returns the recorded result for a parameter set id
func (m *Manifest) Result(setID string) (SweepResult, bool) {
	for _, r := range m.Results {
		if r.SetID == setID {
			return r, true
		}
	}
	return SweepResult{}, false
}

// Failures counts failed runs
func (m *Manifest) Failures() int {
	n := 0
	for _, r := range m.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}
