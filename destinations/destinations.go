// Package destinations is the registry of places finished videos can be
// published to. Clients register a destination once and reference it by key.
package destinations

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"automark/logger"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned when no destination is registered under a key
var ErrNotFound = errors.New("destination not found")

// Types lists the publisher backends a destination can target.
var Types = []string{"directServe", "s3", "gcs", "sftp", "minio"}

// required settings per type; checked on Register
var requiredSettings = map[string][]string{
	"directServe": {},
	"s3":          {"accessKey", "secretKey", "region", "bucket"},
	"gcs":         {"bucket"},
	"sftp":        {"host", "user"},
	"minio":       {"endpoint", "accessKey", "secretKey", "bucket"},
}

// Destination is a registered publish target
type Destination struct {
	Type     string            `json:"type"`
	Settings map[string]string `json:"settings"`
}

// Validate checks the type is known and its mandatory settings are present
func (d Destination) Validate() error {
	keys, ok := requiredSettings[d.Type]
	if !ok {
		return fmt.Errorf("unknown destination type %q", d.Type)
	}
	for _, k := range keys {
		if d.Settings[k] == "" {
			return fmt.Errorf("%s destination requires %q", d.Type, k)
		}
	}
	if d.Type == "sftp" && d.Settings["password"] == "" && d.Settings["privateKey"] == "" {
		return fmt.Errorf("sftp destination requires \"password\" or \"privateKey\"")
	}
	return nil
}

var (
	db *pebble.DB
	mu sync.RWMutex
)

// OpenDB opens the registry database at dbPath
func OpenDB(dbPath string) error {
	opened, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		logger.Errorf("Failed to open destinations DB: %v", err)
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if db != nil {
		db.Close()
	}
	db = opened
	return nil
}

// CloseDB closes the DB
func CloseDB() error {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

func newKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Register validates d, stores it and returns the key jobs refer to it by.
func Register(d Destination) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	if d.Settings == nil {
		d.Settings = map[string]string{}
	}
	encoded, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	key, err := newKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate destination key: %w", err)
	}

	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return "", errors.New("destinations store not initialized")
	}
	if err := db.Set([]byte(key), encoded, pebble.Sync); err != nil {
		return "", err
	}
	return key, nil
}

// Get returns the destination stored under key
func Get(key string) (Destination, error) {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return Destination{}, errors.New("destinations store not initialized")
	}

	value, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Destination{}, ErrNotFound
		}
		return Destination{}, err
	}
	defer closer.Close()

	var d Destination
	if err := json.Unmarshal(value, &d); err != nil {
		return Destination{}, err
	}
	return d, nil
}

// Exists reports whether key names a registered destination
func Exists(key string) bool {
	_, err := Get(key)
	return err == nil
}

// Delete removes the destination stored under key
func Delete(key string) error {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return errors.New("destinations store not initialized")
	}
	return db.Delete([]byte(key), pebble.Sync)
}
