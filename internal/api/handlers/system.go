package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ytppt/slidesweep/internal/config"
	"github.com/ytppt/slidesweep/internal/models"
	"go.uber.org/zap"
)

// Version is reported by /api/system/info
var Version = "dev"

type SystemHandler struct {
	config  *config.Config
	outBase string
	logger  *zap.Logger
}

func NewSystemHandler(cfg *config.Config, outBase string, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		config:  cfg,
		outBase: outBase,
		logger:  logger,
	}
}

func (h *SystemHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":     "slidesweep",
		"version":  Version,
		"ffmpeg":   h.config.FFmpeg.Path,
		"ffprobe":  h.config.FFmpeg.ProbePath,
		"out_base": h.outBase,
	})
}

// Sets lists the parameter sets a sweep runs, in execution order
func (h *SystemHandler) Sets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sets": models.DefaultParameterSets(),
	})
}
