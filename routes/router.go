package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"automark/logger"
	"automark/models"

	"github.com/gorilla/mux"
)

// Submitter queues a job id for processing
type Submitter interface {
	Submit(jobID string) error
}

// PoolStats is reported by the health endpoint when available
type PoolStats interface {
	Size() int
	Pending() int
	Active() int
}

// LogoForgetter drops scaled variants of a logo that was replaced
type LogoForgetter interface {
	Forget(logoName string) int
}

// JobStore is the part of the job registry the HTTP layer uses
type JobStore interface {
	Create(req models.JobRequest) models.Job
	Get(id string) (models.Job, bool)
	List() []models.Job
	Fail(id, msg string)
	Count(status models.JobStatus) int
	Len() int
	Reset()
}

// Handler serves the job API
type Handler struct {
	Store          JobStore
	Pool           Submitter
	Logos          LogoForgetter // may be nil
	InputDir       string
	LogoDir        string
	MaxUploadBytes int64
}

// NewRouter mounts every route below prefix and wraps them in CORS handling.
func NewRouter(h *Handler, prefix string, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix(prefix).Subrouter()
	if prefix == "" {
		api = r
	}

	api.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	api.HandleFunc("/version", VersionHandler).Methods(http.MethodGet)

	api.HandleFunc("/jobs", h.CreateJobHandler).Methods(http.MethodPost)
	api.HandleFunc("/jobs", h.ListJobsHandler).Methods(http.MethodGet)
	api.HandleFunc("/jobs/upload", h.UploadHandler).Methods(http.MethodPost)
	api.HandleFunc("/jobs/reset", h.ResetJobsHandler).Methods(http.MethodPost)
	api.HandleFunc("/jobs/stats", h.JobStatsHandler).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", h.GetJobHandler).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/download", h.DownloadHandler).Methods(http.MethodGet)

	api.HandleFunc("/failures", FailureQueryHandler).Methods(http.MethodGet)
	api.HandleFunc("/failures/list", FailureListHandler).Methods(http.MethodGet)
	api.HandleFunc("/success", SuccessQueryHandler).Methods(http.MethodGet)
	api.HandleFunc("/success/list", SuccessListHandler).Methods(http.MethodGet)

	api.HandleFunc("/destinations", RegisterDestinationHandler).Methods(http.MethodPost)
	api.HandleFunc("/destinations/{key}", DeleteDestinationHandler).Methods(http.MethodDelete)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	return corsMiddleware(allowedOrigins)(r)
}

// corsMiddleware answers preflight requests itself and stamps the
// allow-origin header on every response whose origin is listed. A "*" entry
// admits any other origin without credentials.
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	wildcard := false
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		set[strings.TrimRight(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case origin == "":
			case set[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			case wildcard:
				// credentials are never granted to arbitrary origins
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				if h := r.Header.Get("Access-Control-Request-Headers"); h != "" {
					w.Header().Set("Access-Control-Allow-Headers", h)
				} else {
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
