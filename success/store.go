package success

import (
	"encoding/json"
	"fmt"
	"time"

	"automark/history"
)

// Outcome is what a completed job produced
type Outcome struct {
	OutputName   string
	OutputSize   int64
	PublishedTo  string // destination type, empty when not published
	PublishError string
}

// SuccessRecord represents a completed job
type SuccessRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	JobData      string    `json:"job_data"`
	OutputName   string    `json:"output_name"`
	OutputSize   int64     `json:"output_size"`
	PublishedTo  string    `json:"published_to,omitempty"`
	PublishError string    `json:"publish_error,omitempty"`
}

func (r SuccessRecord) RecordTime() time.Time { return r.Timestamp }

var store = history.New[SuccessRecord]("success")

// Init opens the success store
func Init(dbPath string) error {
	return store.Open(dbPath)
}

// Close closes the success store
func Close() error {
	return store.Close()
}

// StoreSuccess records a completed job together with its output details
func StoreSuccess(id string, jobData interface{}, outcome Outcome) error {
	jobJSON, jsonErr := json.Marshal(jobData)
	if jsonErr != nil {
		jobJSON = []byte(fmt.Sprintf("failed to marshal job data: %v", jsonErr))
	}

	return store.Put(id, SuccessRecord{
		ID:           id,
		Timestamp:    time.Now(),
		JobData:      string(jobJSON),
		OutputName:   outcome.OutputName,
		OutputSize:   outcome.OutputSize,
		PublishedTo:  outcome.PublishedTo,
		PublishError: outcome.PublishError,
	})
}

// GetSuccess returns the record for a job id, nil if there is none
func GetSuccess(id string) (*SuccessRecord, error) {
	return store.Get(id)
}

// DeleteSuccess removes a success record
func DeleteSuccess(id string) error {
	return store.Delete(id)
}

// ListSuccessRecords returns all success records, newest first
func ListSuccessRecords() ([]SuccessRecord, error) {
	return store.List()
}

// CleanupOldRecords removes success records older than maxAge
func CleanupOldRecords(maxAge time.Duration) (int, error) {
	return store.Cleanup(maxAge)
}

// CheckHealth performs a basic health check on the success database
func CheckHealth() error {
	return store.Ping()
}
