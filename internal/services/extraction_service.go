package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ytppt/slidesweep/internal/export"
	"github.com/ytppt/slidesweep/internal/ffmpeg"
	"github.com/ytppt/slidesweep/internal/imaging"
	"github.com/ytppt/slidesweep/internal/models"
	"github.com/ytppt/slidesweep/internal/storage"
	"go.uber.org/zap"
)

// Frame rate assumed when the probe reports none
const defaultFrameRate = 30.0

// MediaTool is the part of the ffmpeg executor the extraction pipeline uses
type MediaTool interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
	DetectSceneCuts(ctx context.Context, input string, opts ffmpeg.SceneDetectionOptions) ([]float64, error)
	ExtractFrame(ctx context.Context, input, output string, timestamp float64, quality int) error
}

// Extractor runs the slide extraction for one parameter set
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error)
}

// OutputOptions selects which documents are written
type OutputOptions struct {
	PPTOnly    bool // PDF of the cropped region
	FullScreen bool // Same pages taken from the uncropped video
	PPTX       bool
	Images     bool // page_NNN.png copies
}

type ExtractRequest struct {
	OutputDir    string
	VideoFull    string
	VideoCropped string // Empty or missing means detection runs on the full video
	Set          models.ParameterSet
	Window       Window
	Outputs      OutputOptions
}

type ExtractResult struct {
	Keyframes []float64         // Candidate timestamps before duplicate filtering
	Times     []float64         // Timestamps of the kept pages
	Frames    []string          // Kept frames, in page order
	Files     map[string]string // Written documents by file name
}

// ExtractionService detects scenes and turns them into slide documents
type ExtractionService struct {
	media   MediaTool
	quality int
	logger  *zap.Logger
}

func NewExtractionService(media MediaTool, quality int, logger *zap.Logger) *ExtractionService {
	return &ExtractionService{
		media:   media,
		quality: quality,
		logger:  logger,
	}
}

// Extract runs detection, keyframe selection, frame grabs and exports into req.OutputDir
func (s *ExtractionService) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	input := req.VideoFull
	if req.VideoCropped != "" {
		if _, err := os.Stat(req.VideoCropped); err == nil {
			input = req.VideoCropped
		}
	}

	probe, err := s.media.Probe(ctx, input)
	if err != nil {
		return nil, err
	}
	duration, err := probe.GetDuration()
	if err != nil {
		return nil, err
	}
	fps, err := probe.GetFrameRate()
	if err != nil {
		s.logger.Warn("No frame rate reported, assuming default",
			zap.String("input", input),
			zap.Float64("fps", defaultFrameRate),
		)
		fps = defaultFrameRate
	}

	start, end, err := req.Window.Bounds(duration)
	if err != nil {
		return nil, err
	}

	cuts, err := s.media.DetectSceneCuts(ctx, input, ffmpeg.SceneDetectionOptions{
		Threshold:      req.Set.Threshold / 100,
		MinSceneLength: float64(req.Set.MinSceneLen) / fps,
		Duration:       duration,
	})
	if err != nil {
		return nil, err
	}

	result := &ExtractResult{
		Keyframes: SelectKeyframes(cuts, duration, req.Set, start, end),
		Files:     make(map[string]string),
	}

	s.logger.Info("Keyframes selected",
		zap.String("set", req.Set.ID),
		zap.Int("cuts", len(cuts)),
		zap.Int("keyframes", len(result.Keyframes)),
	)

	framesDir := filepath.Join(req.OutputDir, storage.FramesDir)
	result.Frames, result.Times, err = s.extractFrames(ctx, input, framesDir, result.Keyframes, req.Set.DuplicateThreshold, req.OutputDir)
	if err != nil {
		return nil, err
	}
	if len(result.Frames) == 0 {
		return nil, fmt.Errorf("no frames extracted from %s", filepath.Base(input))
	}

	if req.Outputs.PPTOnly {
		if err := s.writeDocuments(result.Frames, req.OutputDir, storage.PDFName, storage.PPTXName, storage.PagesDir, req.Outputs, result.Files); err != nil {
			return nil, err
		}
	}

	if req.Outputs.FullScreen {
		full, err := s.extractFullFrames(ctx, req.VideoFull, filepath.Join(req.OutputDir, storage.FullFramesDir), result.Times)
		if err != nil {
			return nil, err
		}
		if len(full) > 0 {
			if err := s.writeDocuments(full, req.OutputDir, storage.FullPDFName, storage.FullPPTXName, storage.FullPagesDir, req.Outputs, result.Files); err != nil {
				return nil, err
			}
		}
	}

	s.logger.Info("Extraction completed",
		zap.String("set", req.Set.ID),
		zap.Int("pages", len(result.Frames)),
		zap.Int("documents", len(result.Files)),
	)
	return result, nil
}

// extractFrames grabs every keyframe into a scratch directory and moves the ones
// that pass the duplicate filter into dir as frame_NNN.png
func (s *ExtractionService) extractFrames(ctx context.Context, input, dir string, times []float64, duplicate float64, scratchParent string) ([]string, []float64, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	scratch, err := os.MkdirTemp(scratchParent, ".frames-")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	filter := imaging.NewDuplicateFilter(duplicate)
	var frames []string
	var kept []float64

	for i, t := range times {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		raw := filepath.Join(scratch, fmt.Sprintf("raw_%04d.png", i))
		if err := s.media.ExtractFrame(ctx, input, raw, t, s.quality); err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			s.logger.Warn("Frame extraction failed", zap.Float64("time", t), zap.Error(err))
			continue
		}

		keep, err := filter.Keep(raw)
		if err != nil {
			s.logger.Warn("Unreadable frame skipped", zap.Float64("time", t), zap.Error(err))
			continue
		}
		if !keep {
			s.logger.Debug("Duplicate frame dropped", zap.Float64("time", t))
			continue
		}

		dst := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", len(frames)+1))
		if err := os.Rename(raw, dst); err != nil {
			return nil, nil, fmt.Errorf("failed to store frame: %w", err)
		}
		frames = append(frames, dst)
		kept = append(kept, t)
	}

	return frames, kept, nil
}

// extractFullFrames grabs the uncropped frames at the kept timestamps
func (s *ExtractionService) extractFullFrames(ctx context.Context, input, dir string, times []float64) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	var frames []string
	for i, t := range times {
		dst := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i+1))
		if err := s.media.ExtractFrame(ctx, input, dst, t, s.quality); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("Full-screen frame extraction failed", zap.Float64("time", t), zap.Error(err))
			continue
		}
		frames = append(frames, dst)
	}
	return frames, nil
}

func (s *ExtractionService) writeDocuments(frames []string, outDir, pdfName, pptxName, pagesDir string, opts OutputOptions, files map[string]string) error {
	pdfPath := filepath.Join(outDir, pdfName)
	if err := export.WritePDF(frames, pdfPath); err != nil {
		return err
	}
	files[pdfName] = pdfPath

	if opts.PPTX {
		pptxPath := filepath.Join(outDir, pptxName)
		if err := export.WritePPTX(frames, pptxPath); err != nil {
			return err
		}
		files[pptxName] = pptxPath
	}

	if opts.Images {
		dir := filepath.Join(outDir, pagesDir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		for i, frame := range frames {
			if err := copyFile(frame, filepath.Join(dir, fmt.Sprintf("page_%03d.png", i+1))); err != nil {
				return err
			}
		}
		files[pagesDir] = dir
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
