package routes

import (
	"encoding/json"
	"net/http"

	"automark/destinations"
	"automark/logger"

	"github.com/gorilla/mux"
)

// RegisterDestinationHandler stores a publish target and returns its key
func RegisterDestinationHandler(w http.ResponseWriter, r *http.Request) {
	var d destinations.Destination
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := d.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := destinations.Register(d)
	if err != nil {
		logger.Errorf("Failed to store destination: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to store destination")
		return
	}

	logger.Infof("Registered %s destination", d.Type)
	writeJSON(w, http.StatusOK, map[string]string{
		"key":  key,
		"type": d.Type,
	})
}

// DeleteDestinationHandler forgets a publish target
func DeleteDestinationHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !destinations.Exists(key) {
		writeError(w, http.StatusNotFound, "Destination not found")
		return
	}
	if err := destinations.Delete(key); err != nil {
		logger.Errorf("Failed to delete destination: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
