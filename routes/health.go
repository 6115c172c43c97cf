package routes

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"automark/failures"
	"automark/logger"
	"automark/success"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Workers   *WorkerStats      `json:"workers,omitempty"`
	Jobs      int               `json:"jobs"`
	Stores    map[string]string `json:"stores"`
}

// WorkerStats describes pool occupancy
type WorkerStats struct {
	Size    int `json:"size"`
	Active  int `json:"active"`
	Pending int `json:"pending"`
}

var startTime = time.Now()

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

func storeState(check func() error) string {
	if err := check(); err != nil {
		return err.Error()
	}
	return "ok"
}

// HealthHandler reports liveness plus queue and store state. Status is "ok"
// even when a history store is down since jobs still run without it.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Health check request: remoteAddr=%s", r.RemoteAddr)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   version,
		GoVersion: runtime.Version(),
		Uptime:    formatUptime(time.Since(startTime)),
		Jobs:      h.Store.Len(),
		Stores: map[string]string{
			"failures": storeState(failures.CheckHealth),
			"success":  storeState(success.CheckHealth),
		},
	}
	if stats, ok := h.Pool.(PoolStats); ok {
		response.Workers = &WorkerStats{Size: stats.Size(), Active: stats.Active(), Pending: stats.Pending()}
	}

	writeJSON(w, http.StatusOK, response)
}
