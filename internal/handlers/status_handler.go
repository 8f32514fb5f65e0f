package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/services/jobs"
)

// StatusHandler serves health and version endpoints
type StatusHandler struct {
	cfg        *common.Config
	jobService *jobs.Service
	startTime  time.Time
	logger     arbor.ILogger
}

// NewStatusHandler creates a status handler
func NewStatusHandler(cfg *common.Config, jobService *jobs.Service, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		cfg:        cfg,
		jobService: jobService,
		startTime:  time.Now(),
		logger:     logger,
	}
}

// HealthHandler reports liveness plus queue depth
// GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"version":     common.GetVersion(),
		"uptime":      time.Since(h.startTime).Round(time.Second).String(),
		"queue_depth": h.jobService.QueueDepth(),
		"workers":     h.cfg.Queue.Workers,
	})
}

// VersionHandler reports build information
// GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetFullVersion(),
	})
}
