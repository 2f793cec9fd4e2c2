package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ytppt/slidesweep/internal/models"
	"github.com/ytppt/slidesweep/internal/storage"
	"go.uber.org/zap"
)

// Documents that may be downloaded from a set's directory
var downloadable = map[string]string{
	storage.PDFName:      "application/pdf",
	storage.FullPDFName:  "application/pdf",
	storage.PPTXName:     "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	storage.FullPPTXName: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// SweepHandler serves the results of the sweep stored under one out-base
type SweepHandler struct {
	storage *storage.Manager
	logger  *zap.Logger
}

func NewSweepHandler(storage *storage.Manager, logger *zap.Logger) *SweepHandler {
	return &SweepHandler{
		storage: storage,
		logger:  logger,
	}
}

type pageInfo struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Size   int64  `json:"size"`
}

type setDetail struct {
	models.SweepResult
	Files []string `json:"files"`
}

func (h *SweepHandler) manifest(c *gin.Context) (*models.Manifest, bool) {
	manifest, err := h.storage.LoadManifest()
	if err != nil {
		if errors.Is(err, storage.ErrNoManifest) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no sweep has been run"})
			return nil, false
		}
		h.logger.Error("Failed to load manifest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sweep"})
		return nil, false
	}
	return manifest, true
}

// result looks the set up in the manifest; only known ids reach the filesystem
func (h *SweepHandler) result(c *gin.Context) (models.SweepResult, bool) {
	manifest, ok := h.manifest(c)
	if !ok {
		return models.SweepResult{}, false
	}

	id := c.Param("id")
	result, found := manifest.Result(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "parameter set not found"})
		return models.SweepResult{}, false
	}
	return result, true
}

func (h *SweepHandler) Summary(c *gin.Context) {
	manifest, ok := h.manifest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, manifest)
}

func (h *SweepHandler) GetSet(c *gin.Context) {
	result, ok := h.result(c)
	if !ok {
		return
	}

	files := []string{}
	for _, name := range []string{storage.PDFName, storage.PPTXName, storage.FullPDFName, storage.FullPPTXName} {
		if h.storage.FileExists(filepath.Join(h.storage.SetDir(result.SetID), name)) {
			files = append(files, name)
		}
	}

	c.JSON(http.StatusOK, setDetail{SweepResult: result, Files: files})
}

func (h *SweepHandler) ListPages(c *gin.Context) {
	result, ok := h.result(c)
	if !ok {
		return
	}

	paths, err := h.storage.ListPages(result.SetID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	pages := make([]pageInfo, 0, len(paths))
	for i, p := range paths {
		size, _ := h.storage.GetFileSize(p)
		pages = append(pages, pageInfo{
			Number: i + 1,
			Name:   filepath.Base(p),
			URL:    fmt.Sprintf("/api/sets/%s/pages/%d", result.SetID, i+1),
			Size:   size,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"set":   result.SetID,
		"count": len(pages),
		"pages": pages,
	})
}

func (h *SweepHandler) GetPage(c *gin.Context) {
	result, ok := h.result(c)
	if !ok {
		return
	}

	number, err := strconv.Atoi(c.Param("page"))
	if err != nil || number < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive number"})
		return
	}

	paths, err := h.storage.ListPages(result.SetID)
	if err != nil || number > len(paths) {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}

	c.Header("Content-Type", "image/png")
	c.Header("Cache-Control", "public, max-age=3600")
	c.File(paths[number-1])
}

func (h *SweepHandler) GetFile(c *gin.Context) {
	result, ok := h.result(c)
	if !ok {
		return
	}

	name := c.Param("name")
	contentType, allowed := downloadable[name]
	if !allowed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown document"})
		return
	}

	path := filepath.Join(h.storage.SetDir(result.SetID), name)
	if !h.storage.FileExists(path) {
		h.logger.Warn("Document not found", zap.String("set", result.SetID), zap.String("name", name))
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s_%s\"", result.SetID, name))
	c.Header("X-Content-Type-Options", "nosniff")
	c.File(path)
}
