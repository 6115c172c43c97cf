package routes

import (
	"net/http"

	"automark/failures"
	"automark/logger"
	"automark/success"
)

// FailureQueryHandler reports whether a job id has a recorded failure
func FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id parameter required")
		return
	}

	record, err := failures.GetFailure(id)
	if err != nil {
		logger.Errorf("Failed to query failure for job %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if record == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":     id,
			"status": "no_failure",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        record.ID,
		"status":    "failed",
		"timestamp": record.Timestamp,
		"error":     record.Error,
		"job_data":  record.JobData,
	})
}

// FailureListHandler lists every stored failure, newest first
func FailureListHandler(w http.ResponseWriter, r *http.Request) {
	list, err := failures.ListFailures()
	if err != nil {
		logger.Errorf("Failed to list failures: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"failures": list,
		"count":    len(list),
	})
}

// SuccessQueryHandler returns the completion record of a job
func SuccessQueryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id parameter required")
		return
	}

	record, err := success.GetSuccess(id)
	if err != nil {
		logger.Errorf("Failed to query success for job %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "No success record for this job")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// SuccessListHandler lists completion records, newest first
func SuccessListHandler(w http.ResponseWriter, r *http.Request) {
	list, err := success.ListSuccessRecords()
	if err != nil {
		logger.Errorf("Failed to list success records: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": list,
		"count":   len(list),
	})
}
