package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytppt/slidesweep/internal/ffmpeg"
	"github.com/ytppt/slidesweep/internal/models"
	"go.uber.org/zap"
)

type fakeCropTool struct {
	err   error
	calls int
	input string
}

func (f *fakeCropTool) Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error) {
	return &ffmpeg.ProbeResult{Format: ffmpeg.Format{Duration: "60"}}, nil
}

func (f *fakeCropTool) CropVideo(ctx context.Context, input, output string, crop models.Crop, duration float64, onProgress ffmpeg.ProgressCallback) error {
	f.calls++
	f.input = input
	if f.err != nil {
		// ffmpeg leaves a partial file behind
		_ = os.WriteFile(output, []byte("partial"), 0644)
		return f.err
	}
	onProgress(0.5)
	return os.WriteFile(output, []byte("cropped"), 0644)
}

var rightSide = models.Crop{Left: 0.35, Top: 0, Width: 0.65, Height: 1}

func TestEnsureCropped(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeCropTool{}
	svc := NewCropService(tool, zap.NewNop())

	path, err := svc.EnsureCropped(context.Background(), dir, rightSide, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, CroppedVideoName), path)
	assert.Equal(t, filepath.Join(dir, SourceVideoName), tool.input)
	assert.FileExists(t, path)

	// reused on the next sweep
	_, err = svc.EnsureCropped(context.Background(), dir, rightSide, false)
	require.NoError(t, err)
	assert.Equal(t, 1, tool.calls)

	// unless forced
	_, err = svc.EnsureCropped(context.Background(), dir, rightSide, true)
	require.NoError(t, err)
	assert.Equal(t, 2, tool.calls)
}

func TestEnsureCroppedRecropsWhenCropChanges(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeCropTool{}
	svc := NewCropService(tool, zap.NewNop())

	_, err := svc.EnsureCropped(context.Background(), dir, rightSide, false)
	require.NoError(t, err)
	recorded, err := os.ReadFile(filepath.Join(dir, CropRecordName))
	require.NoError(t, err)
	assert.Equal(t, "0.35,0,0.65,1\n", string(recorded))

	leftSide := models.Crop{Left: 0, Top: 0, Width: 0.5, Height: 1}
	_, err = svc.EnsureCropped(context.Background(), dir, leftSide, false)
	require.NoError(t, err)
	assert.Equal(t, 2, tool.calls)

	recorded, err = os.ReadFile(filepath.Join(dir, CropRecordName))
	require.NoError(t, err)
	assert.Equal(t, "0,0,0.5,1\n", string(recorded))
}

func TestEnsureCroppedReusesUnrecordedVideo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CroppedVideoName), []byte("cropped earlier"), 0644))
	tool := &fakeCropTool{}

	path, err := NewCropService(tool, zap.NewNop()).EnsureCropped(context.Background(), dir, rightSide, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, CroppedVideoName), path)
	assert.Zero(t, tool.calls)
}

func TestEnsureCroppedFullFrame(t *testing.T) {
	tool := &fakeCropTool{}
	path, err := NewCropService(tool, zap.NewNop()).EnsureCropped(context.Background(), t.TempDir(), models.FullFrame, false)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Zero(t, tool.calls)
}

func TestEnsureCroppedFailure(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeCropTool{err: errors.New("ffmpeg failed: Invalid too big or non positive size")}

	_, err := NewCropService(tool, zap.NewNop()).EnsureCropped(context.Background(), dir, rightSide, false)
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
