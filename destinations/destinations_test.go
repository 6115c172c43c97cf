package destinations

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) {
	t.Helper()
	if err := OpenDB(filepath.Join(t.TempDir(), "destinations.db")); err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { CloseDB() })
}

func TestValidate(t *testing.T) {
	valid := []Destination{
		{Type: "directServe"},
		{Type: "s3", Settings: map[string]string{"accessKey": "a", "secretKey": "s", "region": "r", "bucket": "b"}},
		{Type: "gcs", Settings: map[string]string{"bucket": "b"}},
		{Type: "sftp", Settings: map[string]string{"host": "h", "user": "u", "password": "p"}},
		{Type: "minio", Settings: map[string]string{"endpoint": "e", "accessKey": "a", "secretKey": "s", "bucket": "b"}},
	}
	for _, d := range valid {
		if err := d.Validate(); err != nil {
			t.Errorf("%s: %v", d.Type, err)
		}
	}

	invalid := []Destination{
		{Type: "ftp"},
		{Type: "s3", Settings: map[string]string{"bucket": "b"}},
		{Type: "sftp", Settings: map[string]string{"host": "h", "user": "u"}},
		{Type: "minio"},
	}
	for _, d := range invalid {
		if err := d.Validate(); err == nil {
			t.Errorf("%+v accepted", d)
		}
	}
}

func TestRegisterGetDelete(t *testing.T) {
	openTestDB(t)

	key, err := Register(Destination{Type: "gcs", Settings: map[string]string{"bucket": "renders"}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("key %q is not 16 hex bytes", key)
	}

	d, err := Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Type != "gcs" || d.Settings["bucket"] != "renders" {
		t.Errorf("Get = %+v", d)
	}
	if !Exists(key) {
		t.Error("Exists = false for registered key")
	}

	other, _ := Register(Destination{Type: "directServe"})
	if other == key {
		t.Error("keys must be unique")
	}

	if err := Delete(key); err != nil {
		t.Fatal(err)
	}
	if _, err := Get(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	openTestDB(t)
	if _, err := Register(Destination{Type: "carrier-pigeon"}); err == nil {
		t.Error("unknown type accepted")
	}
}

func TestClosedRegistry(t *testing.T) {
	if _, err := Get("x"); err == nil {
		t.Error("Get on closed registry succeeded")
	}
	if Exists("x") {
		t.Error("Exists on closed registry")
	}
}
