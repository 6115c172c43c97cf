package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"automark/destinations"
	"automark/logger"
	"automark/models"

	"github.com/gorilla/mux"
)

// errQueueClosed is recorded on jobs the pool refused
const errQueueClosed = "job queue is not accepting work"

// CreateJobRequest is the body of POST /jobs
type CreateJobRequest struct {
	InputName   string   `json:"input_name"`
	LogoName    string   `json:"logo_name"`
	Position    string   `json:"position,omitempty"`
	Scale       *float64 `json:"scale,omitempty"`
	Destination string   `json:"destination,omitempty"`
}

// jobParams validates the tunables shared by job creation and upload.
func jobParams(position string, scale *float64, destination string) (models.Position, float64, error) {
	pos := models.DefaultPosition
	if position != "" {
		pos = models.Position(strings.ToLower(strings.TrimSpace(position)))
		if !pos.Valid() {
			return "", 0, fmt.Errorf("invalid position %q", position)
		}
	}

	s := models.DefaultScale
	if scale != nil {
		if !models.ValidScale(*scale) {
			return "", 0, fmt.Errorf("scale must be a positive number")
		}
		s = *scale
	}

	if destination != "" && !destinations.Exists(destination) {
		return "", 0, fmt.Errorf("unknown destination %q", destination)
	}
	return pos, s, nil
}

// safeName rejects names that are empty or carry directory parts.
func safeName(name string) (string, bool) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "" || base == "." || base == ".." || base == "/" || base != name {
		return "", false
	}
	return base, true
}

// CreateJobHandler queues a job for files already present in storage
func (h *Handler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inputName, ok := safeName(req.InputName)
	if !ok {
		writeError(w, http.StatusBadRequest, "input_name must be a plain file name")
		return
	}
	logoName, ok := safeName(req.LogoName)
	if !ok {
		writeError(w, http.StatusBadRequest, "logo_name must be a plain file name")
		return
	}

	position, scale, err := jobParams(req.Position, req.Scale, req.Destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inputPath := filepath.Join(h.InputDir, inputName)
	info, err := os.Stat(inputPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("input %s not found", inputName))
		return
	}
	logoPath := filepath.Join(h.LogoDir, logoName)
	if li, err := os.Stat(logoPath); err != nil || li.IsDir() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("logo %s not found", logoName))
		return
	}

	job := h.Store.Create(models.JobRequest{
		InputName:   inputName,
		LogoName:    logoName,
		InputPath:   inputPath,
		LogoPath:    logoPath,
		Position:    position,
		Scale:       scale,
		FileSize:    info.Size(),
		Destination: req.Destination,
	})
	if err := h.Pool.Submit(job.ID); err != nil {
		logger.Errorf("Failed to submit job %s: %v", job.ID, err)
		h.Store.Fail(job.ID, errQueueClosed)
		writeError(w, http.StatusServiceUnavailable, "Job queue is not accepting work")
		return
	}

	logger.Infof("Queued job %s for %s", job.ID, inputName)
	writeJSON(w, http.StatusOK, job)
}

// ListJobsHandler returns every job in creation order, optionally filtered by ?status=
func (h *Handler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	jobs := h.Store.List()

	if status := r.URL.Query().Get("status"); status != "" {
		want := models.JobStatus(status)
		switch want {
		case models.StatusQueued, models.StatusProcessing, models.StatusCompleted, models.StatusFailed:
		default:
			writeError(w, http.StatusBadRequest, "Invalid status parameter")
			return
		}
		filtered := make([]models.Job, 0, len(jobs))
		for _, j := range jobs {
			if j.Status == want {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}

	writeJSON(w, http.StatusOK, jobs)
}

// GetJobHandler returns a single job
func (h *Handler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := h.Store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// JobStatsResponse summarises the registry by status
type JobStatsResponse struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// JobStatsHandler reports how many jobs are in each state
func (h *Handler) JobStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JobStatsResponse{
		Total:      h.Store.Len(),
		Queued:     h.Store.Count(models.StatusQueued),
		Processing: h.Store.Count(models.StatusProcessing),
		Completed:  h.Store.Count(models.StatusCompleted),
		Failed:     h.Store.Count(models.StatusFailed),
	})
}

// DownloadHandler streams the rendered video once the job has completed
func (h *Handler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := h.Store.Get(id)
	if !ok || job.Status != models.StatusCompleted || job.OutputPath == "" {
		writeError(w, http.StatusNotFound, "Output not ready")
		return
	}

	f, err := os.Open(job.OutputPath)
	if err != nil {
		logger.Errorf("Output of job %s missing: %v", id, err)
		writeError(w, http.StatusNotFound, "Output not ready")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.OutputName))
	http.ServeContent(w, r, job.OutputName, info.ModTime(), f)
}

// ResetJobsHandler clears the registry. Jobs already running finish but their
// updates are dropped.
func (h *Handler) ResetJobsHandler(w http.ResponseWriter, r *http.Request) {
	n := h.Store.Len()
	h.Store.Reset()
	logger.Warnf("Job registry reset, %d jobs dropped", n)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// parseScale reads an optional scale value from a form field
func parseScale(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("scale must be a positive number")
	}
	return &v, nil
}
