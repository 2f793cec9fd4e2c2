package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytppt/slidesweep/internal/metrics"
	"github.com/ytppt/slidesweep/internal/models"
	"github.com/ytppt/slidesweep/internal/storage"
	"go.uber.org/zap"
)

type fakeExtractor struct {
	pages map[string]int
	fail  map[string]error
	calls []ExtractRequest
}

func (f *fakeExtractor) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	f.calls = append(f.calls, req)
	if err := f.fail[req.Set.ID]; err != nil {
		return nil, err
	}

	dir := filepath.Join(req.OutputDir, storage.FramesDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	for i := 1; i <= f.pages[req.Set.ID]; i++ {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)), []byte("png"), 0644); err != nil {
			return nil, err
		}
	}
	return &ExtractResult{}, nil
}

type fakeCropper struct {
	path  string
	err   error
	calls int
}

func (f *fakeCropper) EnsureCropped(ctx context.Context, videoDir string, crop models.Crop, force bool) (string, error) {
	f.calls++
	return f.path, f.err
}

type fakePublisher struct {
	runID string
	dir   string
}

func (f *fakePublisher) PublishDir(ctx context.Context, runID, dir string) ([]string, error) {
	f.runID, f.dir = runID, dir
	return []string{runID + "/summary.json"}, nil
}

func videoDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SourceVideoName), []byte("mp4"), 0644))
	return dir
}

func sixSets() []models.ParameterSet {
	return models.DefaultParameterSets()[:6]
}

func baseRequest(t *testing.T) SweepRequest {
	return SweepRequest{
		VideoDir:       videoDir(t),
		OutBase:        filepath.Join(t.TempDir(), "param_sweep"),
		Crop:           models.Crop{Left: 0.35, Top: 0, Width: 0.65, Height: 1},
		Sets:           sixSets(),
		ExistingPolicy: storage.PolicyReplace,
		Outputs:        OutputOptions{PPTOnly: true},
	}
}

func TestSweepPartialFailure(t *testing.T) {
	sets := sixSets()
	extractor := &fakeExtractor{
		pages: map[string]int{
			sets[0].ID: 3,
			sets[1].ID: 5,
			sets[3].ID: 5,
			sets[4].ID: 1,
			sets[5].ID: 7,
		},
		fail: map[string]error{sets[2].ID: errors.New("corrupted video")},
	}
	cropper := &fakeCropper{path: "/videos/video_cropped.mp4"}
	collector := metrics.New()
	svc := NewSweepService(extractor, cropper, zap.NewNop()).WithMetrics(collector, "metrics.prom")

	req := baseRequest(t)
	manifest, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	// every set ran, in order, despite the failure of the third
	require.Len(t, extractor.calls, 6)
	for i, call := range extractor.calls {
		assert.Equal(t, sets[i].ID, call.Set.ID)
		assert.Equal(t, "/videos/video_cropped.mp4", call.VideoCropped)
	}
	assert.Equal(t, 1, cropper.calls)

	// exactly one isolated directory per set next to the summary files
	dirs, files := readOutBase(t, manifest.OutBase)
	assert.ElementsMatch(t, setIDs(sets), dirs)
	assert.ElementsMatch(t, []string{storage.ManifestName, "metrics.prom"}, files)
	for _, set := range sets {
		entries, err := os.ReadDir(filepath.Join(manifest.OutBase, set.ID))
		require.NoError(t, err)
		if set.ID == sets[2].ID {
			continue
		}
		assert.NotEmpty(t, entries, "completed set %s left an empty directory", set.ID)
	}

	var order []string
	for _, r := range manifest.Results {
		order = append(order, r.SetID)
	}
	assert.Equal(t, []string{sets[5].ID, sets[1].ID, sets[3].ID, sets[0].ID, sets[4].ID, sets[2].ID}, order)

	failed, ok := manifest.Result(sets[2].ID)
	require.True(t, ok)
	assert.True(t, failed.Failed())
	assert.Equal(t, models.PagesUnknown, failed.Pages)
	assert.Contains(t, failed.Error, "corrupted video")
	assert.Equal(t, 1, manifest.Failures())

	ok5, _ := manifest.Result(sets[5].ID)
	assert.Equal(t, 7, ok5.Pages)
	assert.Equal(t, 5, ok5.Index)

	assert.FileExists(t, filepath.Join(manifest.OutBase, storage.ManifestName))
	assert.FileExists(t, filepath.Join(manifest.OutBase, "metrics.prom"))
	assert.NotEmpty(t, manifest.RunID)
}

func readOutBase(t *testing.T, base string) (dirs, files []string) {
	t.Helper()
	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	return dirs, files
}

func setIDs(sets []models.ParameterSet) []string {
	ids := make([]string, 0, len(sets))
	for _, s := range sets {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestSweepRerunGivesSameSetDirectories(t *testing.T) {
	sets := sixSets()
	newExtractor := func() *fakeExtractor {
		return &fakeExtractor{
			pages: map[string]int{sets[0].ID: 2, sets[1].ID: 4, sets[3].ID: 1, sets[4].ID: 3, sets[5].ID: 2},
			fail:  map[string]error{sets[2].ID: errors.New("decode error")},
		}
	}

	req := baseRequest(t)
	first, err := NewSweepService(newExtractor(), &fakeCropper{}, zap.NewNop()).Run(context.Background(), req)
	require.NoError(t, err)

	req.OutBase = filepath.Join(t.TempDir(), "param_sweep_again")
	second, err := NewSweepService(newExtractor(), &fakeCropper{}, zap.NewNop()).Run(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, first.OutBase, second.OutBase)

	firstDirs, _ := readOutBase(t, first.OutBase)
	secondDirs, _ := readOutBase(t, second.OutBase)
	assert.Equal(t, firstDirs, secondDirs)
	assert.ElementsMatch(t, setIDs(sets), firstDirs)

	for i := range first.Results {
		assert.Equal(t, first.Results[i].SetID, second.Results[i].SetID)
		assert.Equal(t, first.Results[i].Pages, second.Results[i].Pages)
	}
}

func TestSweepConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SweepRequest)
	}{
		{"missing video", func(r *SweepRequest) { r.VideoDir = filepath.Join(r.VideoDir, "nope") }},
		{"invalid crop", func(r *SweepRequest) { r.Crop = models.Crop{Left: 0.5, Width: 0.6, Height: 1} }},
		{"no sets", func(r *SweepRequest) { r.Sets = nil }},
		{"duplicate sets", func(r *SweepRequest) { r.Sets = append(r.Sets, r.Sets[0]) }},
		{"threshold out of range", func(r *SweepRequest) {
			r.Sets = append([]models.ParameterSet{}, r.Sets...)
			r.Sets[3].Threshold = 100
		}},
		{"nan crop", func(r *SweepRequest) { r.Crop = models.Crop{Left: math.NaN(), Width: 0.5, Height: 1} }},
		{"unknown policy", func(r *SweepRequest) { r.ExistingPolicy = "merge" }},
		{"bad window", func(r *SweepRequest) { r.StartTime = "ten" }},
		{"publish without endpoint", func(r *SweepRequest) { r.Publish = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := &fakeExtractor{}
			cropper := &fakeCropper{}
			svc := NewSweepService(extractor, cropper, zap.NewNop())

			req := baseRequest(t)
			tt.mutate(&req)

			manifest, err := svc.Run(context.Background(), req)
			assert.Nil(t, manifest)

			var cfgErr *models.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Empty(t, extractor.calls)
			assert.Zero(t, cropper.calls)
			assert.NoDirExists(t, req.OutBase)
		})
	}
}

func TestSweepCropFailureIsFatal(t *testing.T) {
	extractor := &fakeExtractor{}
	svc := NewSweepService(extractor, &fakeCropper{err: errors.New("ffmpeg failed")}, zap.NewNop())

	_, err := svc.Run(context.Background(), baseRequest(t))

	var cfgErr *models.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Empty(t, extractor.calls)
}

func TestSweepExistingPolicy(t *testing.T) {
	sets := sixSets()[:2]

	t.Run("fail keeps previous output", func(t *testing.T) {
		req := baseRequest(t)
		req.Sets = sets
		req.ExistingPolicy = storage.PolicyFail
		stale := filepath.Join(req.OutBase, sets[0].ID, "keep.txt")
		require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
		require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))

		extractor := &fakeExtractor{pages: map[string]int{sets[0].ID: 2, sets[1].ID: 2}}
		manifest, err := NewSweepService(extractor, &fakeCropper{}, zap.NewNop()).Run(context.Background(), req)
		require.NoError(t, err)

		r, _ := manifest.Result(sets[0].ID)
		assert.True(t, r.Failed())
		assert.Contains(t, r.Error, "already exists")
		assert.FileExists(t, stale)
		require.Len(t, extractor.calls, 1)
		assert.Equal(t, sets[1].ID, extractor.calls[0].Set.ID)
	})

	t.Run("replace never merges", func(t *testing.T) {
		req := baseRequest(t)
		req.Sets = sets
		old := filepath.Join(req.OutBase, sets[0].ID, storage.FramesDir)
		require.NoError(t, os.MkdirAll(old, 0755))
		for i := 1; i <= 9; i++ {
			require.NoError(t, os.WriteFile(filepath.Join(old, fmt.Sprintf("frame_%03d.png", 100+i)), []byte("x"), 0644))
		}

		extractor := &fakeExtractor{pages: map[string]int{sets[0].ID: 2, sets[1].ID: 4}}
		manifest, err := NewSweepService(extractor, &fakeCropper{}, zap.NewNop()).Run(context.Background(), req)
		require.NoError(t, err)

		r, _ := manifest.Result(sets[0].ID)
		assert.Equal(t, 2, r.Pages)
	})
}

func TestSweepOutBaseIsResolved(t *testing.T) {
	req := baseRequest(t)
	req.Sets = sixSets()[:1]
	req.OutBase = req.OutBase + string(filepath.Separator)

	extractor := &fakeExtractor{pages: map[string]int{req.Sets[0].ID: 1}}
	manifest, err := NewSweepService(extractor, &fakeCropper{}, zap.NewNop()).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, filepath.Clean(req.OutBase), manifest.OutBase)
	assert.Equal(t, filepath.Join(manifest.OutBase, req.Sets[0].ID), manifest.Results[0].OutputDir)
}

func TestSweepPublishes(t *testing.T) {
	req := baseRequest(t)
	req.Sets = sixSets()[:1]
	req.Publish = true

	publisher := &fakePublisher{}
	svc := NewSweepService(&fakeExtractor{}, &fakeCropper{}, zap.NewNop()).WithPublisher(publisher)

	manifest, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, manifest.RunID, publisher.runID)
	assert.Equal(t, manifest.OutBase, publisher.dir)
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	extractor := &fakeExtractor{}
	manifest, err := NewSweepService(extractor, &fakeCropper{}, zap.NewNop()).Run(ctx, baseRequest(t))

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, manifest)
	assert.Empty(t, manifest.Results)
	assert.Empty(t, extractor.calls)
}

func TestRankResults(t *testing.T) {
	in := []models.SweepResult{
		{SetID: "a", Pages: 4, Status: models.RunStatusCompleted},
		{SetID: "b", Pages: models.PagesUnknown, Status: models.RunStatusFailed},
		{SetID: "c", Pages: 9, Status: models.RunStatusCompleted},
		{SetID: "d", Pages: 4, Status: models.RunStatusCompleted},
		{SetID: "e", Pages: 0, Status: models.RunStatusCompleted},
		{SetID: "f", Pages: 4, Status: models.RunStatusCompleted},
	}

	ranked := RankResults(in)

	var ids []string
	for i, r := range ranked {
		ids = append(ids, r.SetID)
		if i > 0 && !r.Failed() {
			assert.LessOrEqual(t, r.Pages, ranked[i-1].Pages)
		}
	}
	assert.Equal(t, []string{"c", "a", "d", "f", "e", "b"}, ids)
	// input untouched
	assert.Equal(t, "a", in[0].SetID)
}

func TestPrintSummary(t *testing.T) {
	m := &models.Manifest{
		RunID:   "run-1",
		OutBase: "/out",
		Results: []models.SweepResult{
			{SetID: "06_very_sensitive", Pages: 31, Status: models.RunStatusCompleted, OutputDir: "/out/06_very_sensitive"},
			{SetID: "05_conservative", Pages: 8, Status: models.RunStatusCompleted, OutputDir: "/out/05_conservative"},
			{SetID: "03_medium", Pages: models.PagesUnknown, Status: models.RunStatusFailed, Error: "no frames extracted"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, m))
	out := buf.String()

	first := strings.Index(out, "06_very_sensitive")
	second := strings.Index(out, "05_conservative")
	third := strings.Index(out, "03_medium")
	assert.True(t, first < second && second < third)
	assert.Contains(t, out, "/out/06_very_sensitive")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "no frames extracted")
	assert.Contains(t, out, "1 of 3 parameter sets failed")
}
