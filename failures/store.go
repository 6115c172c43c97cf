package failures

import (
	"encoding/json"
	"fmt"
	"time"

	"automark/history"
)

// FailureRecord is the durable trace of a job that ended in failure
type FailureRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	JobData   string    `json:"job_data"` // job snapshot as JSON
}

func (r FailureRecord) RecordTime() time.Time { return r.Timestamp }

var store = history.New[FailureRecord]("failure")

// Init opens the failure store
func Init(dbPath string) error {
	return store.Open(dbPath)
}

// Close closes the failure store
func Close() error {
	return store.Close()
}

// StoreFailure records why job id failed. jobData is kept as a JSON snapshot.
func StoreFailure(id string, err error, jobData interface{}) error {
	jobJSON, jsonErr := json.Marshal(jobData)
	if jsonErr != nil {
		jobJSON = []byte(fmt.Sprintf("failed to marshal job data: %v", jsonErr))
	}

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	return store.Put(id, FailureRecord{
		ID:        id,
		Timestamp: time.Now(),
		Error:     msg,
		JobData:   string(jobJSON),
	})
}

// GetFailure returns the failure for a job id, nil if it never failed
func GetFailure(id string) (*FailureRecord, error) {
	return store.Get(id)
}

// DeleteFailure removes a failure record
func DeleteFailure(id string) error {
	return store.Delete(id)
}

// ListFailures returns all failure records, newest first
func ListFailures() ([]FailureRecord, error) {
	return store.List()
}

// CleanupOldRecords drops failures older than maxAge
func CleanupOldRecords(maxAge time.Duration) (int, error) {
	return store.Cleanup(maxAge)
}

// CheckHealth verifies the database answers reads
func CheckHealth() error {
	return store.Ping()
}
