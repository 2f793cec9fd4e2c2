package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"go.uber.org/zap"
)

// Executor manages FFmpeg process execution
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	threads     int
	logger      *zap.Logger
}

// NewExecutor creates a new FFmpeg executor
func NewExecutor(ffmpegPath, ffprobePath string, threads int, logger *zap.Logger) *Executor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	return &Executor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     threads,
		logger:      logger,
	}
}

// ProgressCallback is called with progress updates (0.0 to 1.0)
type ProgressCallback func(progress float64)

// LineCallback receives every stderr line FFmpeg prints
type LineCallback func(line string)

// ExecuteOptions contains options for FFmpeg execution
type ExecuteOptions struct {
	Args       []string
	Duration   float64
	OnProgress ProgressCallback
	OnLine     LineCallback
}

// Execute runs FFmpeg with the given arguments
func (e *Executor) Execute(ctx context.Context, opts ExecuteOptions) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, opts.Args...)

	e.logger.Debug("Executing FFmpeg",
		zap.String("command", cmd.String()),
	)

	// Capture stderr for progress parsing
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	var stdoutBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var stderrBuf bytes.Buffer
	progressDone := make(chan struct{})

	go func() {
		defer close(progressDone)
		e.parseProgress(stderrPipe, &stderrBuf, opts)
	}()

	// Stderr must be drained before Wait closes the pipe
	<-progressDone
	err = cmd.Wait()

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
		}

		errorMsg := ParseFFmpegError(stderrBuf.String())
		e.logger.Error("FFmpeg execution failed",
			zap.Error(err),
			zap.String("stderr", errorMsg),
		)

		return fmt.Errorf("ffmpeg failed: %s", errorMsg)
	}

	return nil
}

// parseProgress reads stderr line by line and feeds the callbacks
func (e *Executor) parseProgress(stderr io.Reader, stderrBuf *bytes.Buffer, opts ExecuteOptions) {
	parser := NewProgressParser(opts.Duration)
	scanner := bufio.NewScanner(io.TeeReader(stderr, stderrBuf))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if opts.OnLine != nil {
			opts.OnLine(line)
		}

		if opts.OnProgress != nil {
			progress := parser.ParseLine(line)
			if progress >= 0 {
				opts.OnProgress(progress)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		e.logger.Warn("Error reading FFmpeg stderr", zap.Error(err))
		// Keep the process from blocking on a full pipe
		_, _ = io.Copy(stderrBuf, stderr)
	}
}

// ExtractFrame grabs the frame at timestamp (seconds) into an image file
func (e *Executor) ExtractFrame(ctx context.Context, input, output string, timestamp float64, quality int) error {
	if quality <= 0 {
		quality = 2
	}

	// -ss before -i seeks on the input, which is fast and accurate enough for slides
	args := []string{
		"-hide_banner",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", input,
		"-vframes", "1",
		"-q:v", strconv.Itoa(quality),
		"-y",
		output,
	}

	return e.Execute(ctx, ExecuteOptions{
		Args: args,
	})
}

// threadArgs returns the -threads option when a thread count is configured
func (e *Executor) threadArgs() []string {
	if e.threads <= 0 {
		return nil
	}
	return []string{"-threads", strconv.Itoa(e.threads)}
}

// GetFFmpegPath returns the FFmpeg binary path
func (e *Executor) GetFFmpegPath() string {
	return e.ffmpegPath
}

// GetFFprobePath returns the FFprobe binary path
func (e *Executor) GetFFprobePath() string {
	return e.ffprobePath
}
