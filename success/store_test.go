package success

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSuccessStore(t *testing.T) {
	if err := Init(filepath.Join(t.TempDir(), "success.db")); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close()

	outcome := Outcome{OutputName: "clip_marked.mp4", OutputSize: 2048, PublishedTo: "s3"}
	if err := StoreSuccess("job-1", map[string]string{"id": "job-1"}, outcome); err != nil {
		t.Fatalf("StoreSuccess: %v", err)
	}

	rec, err := GetSuccess("job-1")
	if err != nil || rec == nil {
		t.Fatalf("GetSuccess = %v, %v", rec, err)
	}
	if rec.OutputName != "clip_marked.mp4" || rec.OutputSize != 2048 || rec.PublishedTo != "s3" {
		t.Errorf("record = %+v", rec)
	}
	if rec.JobData != `{"id":"job-1"}` {
		t.Errorf("job data = %s", rec.JobData)
	}

	records, err := ListSuccessRecords()
	if err != nil || len(records) != 1 {
		t.Errorf("ListSuccessRecords = %v, %v", records, err)
	}

	if n, err := CleanupOldRecords(time.Hour); err != nil || n != 0 {
		t.Errorf("cleanup removed %d, %v", n, err)
	}
	if n, err := CleanupOldRecords(-time.Hour); err != nil || n != 1 {
		t.Errorf("cleanup with negative age removed %d, %v", n, err)
	}

	if err := DeleteSuccess("job-1"); err != nil {
		t.Errorf("DeleteSuccess = %v", err)
	}
	if err := CheckHealth(); err != nil {
		t.Errorf("CheckHealth = %v", err)
	}
}

func TestSuccessStoreClosed(t *testing.T) {
	if err := CheckHealth(); err == nil {
		t.Error("CheckHealth must fail before Init")
	}
	if err := StoreSuccess("x", nil, Outcome{}); err == nil {
		t.Error("StoreSuccess must fail before Init")
	}
}
