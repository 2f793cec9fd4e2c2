package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/ytppt/slidesweep/internal/metrics"
	"github.com/ytppt/slidesweep/internal/models"
	"github.com/ytppt/slidesweep/internal/storage"
	"go.uber.org/zap"
)

// Cropper prepares the cropped video once per sweep
type Cropper interface {
	EnsureCropped(ctx context.Context, videoDir string, crop models.Crop, force bool) (string, error)
}

// Publisher uploads a finished sweep
type Publisher interface {
	PublishDir(ctx context.Context, runID, dir string) ([]string, error)
}

type SweepRequest struct {
	VideoDir       string
	OutBase        string
	Crop           models.Crop
	Sets           []models.ParameterSet
	StartTime      string // HH:MM:SS
	EndTime        string
	Outputs        OutputOptions
	ExistingPolicy string
	ForceCrop      bool
	Publish        bool
}

// SweepService runs every parameter set against one video and ranks the outcomes
type SweepService struct {
	extractor   Extractor
	cropper     Cropper
	metrics     *metrics.Collector
	metricsFile string
	publisher   Publisher
	progress    io.Writer
	logger      *zap.Logger
}

func NewSweepService(extractor Extractor, cropper Cropper, logger *zap.Logger) *SweepService {
	return &SweepService{
		extractor: extractor,
		cropper:   cropper,
		logger:    logger,
	}
}

// WithMetrics records every run in c and writes it to file (relative to the out-base) after the sweep
func (s *SweepService) WithMetrics(c *metrics.Collector, file string) *SweepService {
	s.metrics = c
	s.metricsFile = file
	return s
}

// WithPublisher enables uploading for requests that ask for it
func (s *SweepService) WithPublisher(p Publisher) *SweepService {
	s.publisher = p
	return s
}

// WithProgress draws a progress bar over the sets on w
func (s *SweepService) WithProgress(w io.Writer) *SweepService {
	s.progress = w
	return s
}

// validate checks everything that must hold before any set runs
func (s *SweepService) validate(req SweepRequest) (string, Window, error) {
	video := filepath.Join(req.VideoDir, SourceVideoName)
	info, err := os.Stat(video)
	if err != nil {
		return "", Window{}, &models.ConfigurationError{Reason: "source video not found: " + video, Err: err}
	}
	if info.IsDir() {
		return "", Window{}, &models.ConfigurationError{Reason: "source video is a directory: " + video}
	}

	if err := req.Crop.Validate(); err != nil {
		return "", Window{}, &models.ConfigurationError{Reason: "invalid crop", Err: err}
	}
	if err := models.ValidateParameterSets(req.Sets); err != nil {
		return "", Window{}, &models.ConfigurationError{Reason: "invalid parameter sets", Err: err}
	}
	if req.ExistingPolicy != "" && !storage.ValidPolicy(req.ExistingPolicy) {
		return "", Window{}, &models.ConfigurationError{Reason: "unknown existing-directory policy: " + req.ExistingPolicy}
	}
	if req.Publish && s.publisher == nil {
		return "", Window{}, &models.ConfigurationError{Reason: "publishing requested but no endpoint is configured"}
	}

	window, err := ParseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return "", Window{}, &models.ConfigurationError{Reason: "invalid time window", Err: err}
	}
	return video, window, nil
}

// Run executes the sweep. Configuration problems return a *models.ConfigurationError
// before anything is written; per-set failures are recorded in the manifest.
func (s *SweepService) Run(ctx context.Context, req SweepRequest) (*models.Manifest, error) {
	video, window, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	base, err := storage.ResolveBase(req.OutBase)
	if err != nil {
		return nil, &models.ConfigurationError{Reason: "invalid output base", Err: err}
	}
	manager := storage.NewManager(base, s.logger)
	if err := manager.Initialize(); err != nil {
		return nil, &models.ConfigurationError{Reason: "cannot create output base", Err: err}
	}

	cropped, err := s.cropper.EnsureCropped(ctx, req.VideoDir, req.Crop, req.ForceCrop)
	if err != nil {
		return nil, &models.ConfigurationError{Reason: "crop step failed", Err: err}
	}

	manifest := &models.Manifest{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Video:     video,
		Crop:      req.Crop,
		OutBase:   base,
		Sets:      req.Sets,
	}

	s.logger.Info("Starting parameter sweep",
		zap.String("run", manifest.RunID),
		zap.String("video", video),
		zap.String("out_base", base),
		zap.Int("sets", len(req.Sets)),
	)

	bar := s.newBar(len(req.Sets))

	var interrupted error
	results := make([]models.SweepResult, 0, len(req.Sets))
	for i, set := range req.Sets {
		if err := ctx.Err(); err != nil {
			interrupted = err
			s.logger.Warn("Sweep interrupted", zap.Int("completed", i), zap.Error(err))
			break
		}
		if bar != nil {
			bar.Describe(set.ID)
		}

		result := s.runSet(ctx, manager, i, len(req.Sets), set, req, video, cropped, window)
		results = append(results, result)
		if s.metrics != nil {
			s.metrics.ObserveResult(result)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	manifest.Results = RankResults(results)
	manifest.FinishedAt = time.Now()

	errs := []error{}
	if interrupted != nil {
		errs = append(errs, fmt.Errorf("sweep interrupted: %w", interrupted))
	}
	if err := manager.SaveManifest(manifest); err != nil {
		errs = append(errs, err)
	}
	if s.metrics != nil {
		s.metrics.ObserveManifest(manifest)
		if s.metricsFile != "" {
			if err := s.metrics.WriteTextfile(filepath.Join(base, s.metricsFile)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if req.Publish && interrupted == nil {
		if _, err := s.publisher.PublishDir(ctx, manifest.RunID, base); err != nil {
			errs = append(errs, fmt.Errorf("publish failed: %w", err))
		}
	}

	s.logger.Info("Parameter sweep finished",
		zap.String("run", manifest.RunID),
		zap.Int("results", len(manifest.Results)),
		zap.Int("failed", manifest.Failures()),
		zap.Duration("elapsed", manifest.FinishedAt.Sub(manifest.StartedAt)),
	)

	return manifest, errors.Join(errs...)
}

func (s *SweepService) runSet(ctx context.Context, manager *storage.Manager, index, total int, set models.ParameterSet, req SweepRequest, video, cropped string, window Window) models.SweepResult {
	started := time.Now()
	result := models.SweepResult{
		SetID:     set.ID,
		Index:     index,
		OutputDir: manager.SetDir(set.ID),
	}

	s.logger.Info("Running parameter set",
		zap.Int("index", index+1),
		zap.Int("total", total),
		zap.String("set", set.ID),
		zap.Stringer("params", set),
	)

	dir, err := manager.PrepareSetDir(set.ID, req.ExistingPolicy)
	if err == nil {
		_, err = s.extractor.Extract(ctx, ExtractRequest{
			OutputDir:    dir,
			VideoFull:    video,
			VideoCropped: cropped,
			Set:          set,
			Window:       window,
			Outputs:      req.Outputs,
		})
	}
	result.Duration = time.Since(started)

	if err != nil {
		extractionErr := &models.ExtractionError{SetID: set.ID, Err: err}
		s.logger.Error("Parameter set failed",
			zap.String("set", set.ID),
			zap.Error(extractionErr),
		)
		result.Status = models.RunStatusFailed
		result.Pages = models.PagesUnknown
		result.Error = err.Error()
		return result
	}

	result.Status = models.RunStatusCompleted
	result.Pages = storage.CountPages(dir)
	s.logger.Info("Parameter set completed",
		zap.String("set", set.ID),
		zap.Int("pages", result.Pages),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func (s *SweepService) newBar(n int) *progressbar.ProgressBar {
	if s.progress == nil || n == 0 {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(s.progress),
		progressbar.OptionSetDescription("sweep"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetPredictTime(false),
	)
}

// RankResults orders results by page count, highest first; failed runs go last.
// Ties keep the configured order.
func RankResults(results []models.SweepResult) []models.SweepResult {
	ranked := append([]models.SweepResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Failed() != b.Failed() {
			return !a.Failed()
		}
		return a.Pages > b.Pages
	})
	return ranked
}

// PrintSummary writes the ranked table: position, set, pages, output directory
func PrintSummary(w io.Writer, m *models.Manifest) error {
	fmt.Fprintf(w, "\nSummary (by pages, descending) - run %s\n", m.RunID)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSET\tPAGES\tOUTPUT")
	for i, r := range m.Results {
		if r.Failed() {
			fmt.Fprintf(tw, "%d\t%s\tfailed\t%s\n", i+1, r.SetID, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i+1, r.SetID, r.Pages, r.OutputDir)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nOutput base: %s\n", m.OutBase)
	if n := m.Failures(); n > 0 {
		fmt.Fprintf(w, "%d of %d parameter sets failed\n", n, len(m.Results))
	}
	return nil
}
