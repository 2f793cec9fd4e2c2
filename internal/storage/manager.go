package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ytppt/slidesweep/internal/models"
	"go.uber.org/zap"
)

// Directory and file names inside a set's output directory
const (
	FramesDir     = "frames_scenedetect"
	PagesDir      = "images_ppt_only"
	FullFramesDir = "frames_full"
	FullPagesDir  = "images_full"
	PDFName       = "slides_ppt_only.pdf"
	PPTXName      = "slides_ppt_only.pptx"
	FullPDFName   = "slides_full.pdf"
	FullPPTXName  = "slides_full.pptx"
	ManifestName  = "summary.json"
)

// Existing-directory policies
const (
	PolicyReplace = "replace"
	PolicyFail    = "fail"
)

// ErrSetDirExists is returned by PrepareSetDir under the fail policy
var ErrSetDirExists = errors.New("output directory already exists")

// ErrNoManifest is returned when the out-base holds no sweep manifest
var ErrNoManifest = errors.New("no sweep manifest")

// Manager handles the sweep's on-disk layout under one out-base
type Manager struct {
	basePath string
	logger   *zap.Logger
}

// NewManager creates a new storage manager
func NewManager(basePath string, logger *zap.Logger) *Manager {
	return &Manager{
		basePath: basePath,
		logger:   logger,
	}
}

// ResolveBase turns an out-base argument into an absolute, cleaned path
func ResolveBase(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty output base")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// ValidPolicy reports whether p names a known existing-directory policy
func ValidPolicy(p string) bool {
	return p == PolicyReplace || p == PolicyFail
}

// BasePath returns the out-base
func (m *Manager) BasePath() string {
	return m.basePath
}

// Initialize creates the out-base
func (m *Manager) Initialize() error {
	if err := os.MkdirAll(m.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", m.basePath, err)
	}
	m.logger.Debug("Output base ready", zap.String("path", m.basePath))
	return nil
}

// SetDir returns the output directory of a parameter set
func (m *Manager) SetDir(setID string) string {
	return filepath.Join(m.basePath, setID)
}

// PrepareSetDir leaves an empty directory for a set according to policy
func (m *Manager) PrepareSetDir(setID, policy string) (string, error) {
	dir := m.SetDir(setID)

	if _, err := os.Stat(dir); err == nil {
		switch policy {
		case PolicyFail:
			return dir, fmt.Errorf("%w: %s", ErrSetDirExists, dir)
		case PolicyReplace, "":
			m.logger.Info("Replacing previous output", zap.String("set", setID), zap.String("path", dir))
			if err := os.RemoveAll(dir); err != nil {
				return dir, fmt.Errorf("failed to remove %s: %w", dir, err)
			}
		default:
			return dir, fmt.Errorf("unknown existing-directory policy: %s", policy)
		}
	} else if !os.IsNotExist(err) {
		return dir, fmt.Errorf("failed to stat %s: %w", dir, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return dir, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}

// CountPages counts the pages a set produced: frames first, exported page
// images otherwise, zero when neither exists
func CountPages(dir string) int {
	if frames := globCount(filepath.Join(dir, FramesDir, "*.png")); frames > 0 {
		return frames
	}
	return globCount(filepath.Join(dir, PagesDir, "page_*.png"))
}

func globCount(pattern string) int {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0
	}
	return len(matches)
}

// ListPages returns the page images of a set, sorted by name
func (m *Manager) ListPages(setID string) ([]string, error) {
	dir := m.SetDir(setID)
	for _, pattern := range []string{
		filepath.Join(dir, FramesDir, "*.png"),
		filepath.Join(dir, PagesDir, "page_*.png"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches, nil
		}
	}

	if !m.FileExists(dir) {
		return nil, fmt.Errorf("set not found: %s", setID)
	}
	return []string{}, nil
}

// ManifestPath returns the path of the sweep manifest
func (m *Manager) ManifestPath() string {
	return filepath.Join(m.basePath, ManifestName)
}

// SaveManifest stores the sweep manifest
func (m *Manager) SaveManifest(manifest *models.Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(m.ManifestPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the sweep manifest
func (m *Manager) LoadManifest() (*models.Manifest, error) {
	data, err := os.ReadFile(m.ManifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoManifest, m.basePath)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest models.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}

// FileExists checks if a file exists
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetFileSize returns the size of a file
func (m *Manager) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
