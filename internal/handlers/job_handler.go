package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/services/jobs"
)

// JobHandler serves job status and evidence queries
type JobHandler struct {
	jobService *jobs.Service
	cfg        *common.Config
	logger     arbor.ILogger
}

// NewJobHandler creates a job handler
func NewJobHandler(jobService *jobs.Service, cfg *common.Config, logger arbor.ILogger) *JobHandler {
	return &JobHandler{jobService: jobService, cfg: cfg, logger: logger}
}

// ListJobsHandler returns all tracked jobs, newest first
// GET /api/jobs
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	list := h.jobService.List()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   list,
		"count":  len(list),
		"queued": h.jobService.QueueDepth(),
	})
}

// JobRoutesHandler dispatches /api/jobs/{id} and /api/jobs/{id}/evidence[/...]
func (h *JobHandler) JobRoutesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.SplitN(rest, "/", 3)
	if parts[0] == "" {
		WriteError(w, http.StatusBadRequest, "missing job id")
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1:
		h.getJob(w, id)
	case parts[1] == "evidence" && len(parts) == 2:
		h.listEvidence(w, id)
	case parts[1] == "evidence" && len(parts) == 3:
		h.serveEvidence(w, r, id, parts[2])
	default:
		WriteError(w, http.StatusNotFound, "not found")
	}
}

func (h *JobHandler) getJob(w http.ResponseWriter, id string) {
	job, ok := h.jobService.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

func (h *JobHandler) listEvidence(w http.ResponseWriter, id string) {
	job, ok := h.jobService.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}

	names := make([]string, 0, len(job.Evidence))
	for _, path := range job.Evidence {
		names = append(names, filepath.Base(path))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":   job.ID,
		"evidence": names,
	})
}

func (h *JobHandler) serveEvidence(w http.ResponseWriter, r *http.Request, id, name string) {
	if _, ok := h.jobService.Get(id); !ok {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}

	// Evidence names come from the job record; reject anything trying to
	// walk out of the job's directory.
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		WriteError(w, http.StatusBadRequest, "invalid evidence name")
		return
	}

	path := filepath.Join(h.cfg.Automation.EvidenceDir, id, name)
	if _, err := os.Stat(path); err != nil {
		WriteError(w, http.StatusNotFound, "evidence not found")
		return
	}
	http.ServeFile(w, r, path)
}
