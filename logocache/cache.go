package logocache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"automark/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const tempPrefix = ".scale-"

// Scaler produces a resized copy of an image
type Scaler interface {
	ScaleImage(ctx context.Context, in, out string, height int) error
}

// ScaleError reports a logo that could not be pre-scaled. Callers recover from
// it by compositing the unscaled source logo instead.
type ScaleError struct {
	Logo   string
	Height int
	Err    error
}

func (e *ScaleError) Error() string {
	return fmt.Sprintf("scale logo %s to %dpx: %v", e.Logo, e.Height, e.Err)
}

func (e *ScaleError) Unwrap() error { return e.Err }

// Cache memoizes pre-scaled logos on disk, keyed by logo name and target height.
// Entries are bounded by count; the least recently used artifact is deleted
// when the bound is exceeded.
type Cache struct {
	dir    string
	scaler Scaler
	items  *lru.Cache[string, string]
	group  singleflight.Group

	mu  sync.Mutex
	gen map[string]uint64 // bumped by Forget, per logo file name
}

// New opens a cache rooted at dir holding at most size entries. Artifacts left
// by a previous run are adopted, oldest first.
func New(dir string, size int, scaler Scaler) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logo cache dir: %w", err)
	}
	c := &Cache{dir: dir, scaler: scaler, gen: make(map[string]uint64)}
	items, err := lru.NewWithEvict[string, string](size, c.evicted)
	if err != nil {
		return nil, fmt.Errorf("failed to create logo cache: %w", err)
	}
	c.items = items

	if err := c.load(); err != nil {
		logger.Warnf("Failed to adopt existing scaled logos in %s: %v", dir, err)
	}
	return c, nil
}

// Key derives the cache entry name for a logo at a target height,
// e.g. brand.png at 300px -> brand_h300.png
func Key(logoPath string, height int) string {
	base := filepath.Base(logoPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("%s_h%d%s", stem, height, ext)
}

// GetOrCreate returns the path of logoPath scaled to height, producing it on a
// miss. The boolean is false when no artifact could be produced.
func (c *Cache) GetOrCreate(ctx context.Context, logoPath string, height int) (string, bool) {
	key := Key(logoPath, height)
	if path, ok := c.lookup(key); ok {
		logger.Debugf("logo cache hit: %s", key)
		return path, true
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		if path, ok := c.lookup(key); ok {
			return path, nil
		}
		path := filepath.Join(c.dir, key)
		if fileExists(path) {
			c.items.Add(key, path)
			return path, nil
		}
		gen := c.generation(logoPath)
		tmp, err := c.build(ctx, logoPath, height)
		if err != nil {
			return "", err
		}
		if err := c.commit(logoPath, gen, key, tmp, path); err != nil {
			return "", &ScaleError{Logo: logoPath, Height: height, Err: err}
		}
		logger.Infof("Scaled logo %s to %dpx -> %s", filepath.Base(logoPath), height, path)
		return path, nil
	})
	if err != nil {
		logger.Warnf("Falling back to unscaled logo: %v", err)
		return "", false
	}
	if shared {
		logger.Debugf("logo cache: joined in-flight scale of %s", key)
	}
	return v.(string), true
}

// Forget drops every scaled variant of the named logo, used when a logo with
// the same name is replaced.
func (c *Cache) Forget(logoName string) int {
	base := filepath.Base(logoName)
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".png"
	}
	prefix := strings.TrimSuffix(base, filepath.Ext(base)) + "_h"

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[base]++

	removed := 0
	for _, key := range c.items.Keys() {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ext) {
			continue
		}
		digits := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ext)
		if digits == "" || strings.Trim(digits, "0123456789") != "" {
			continue
		}
		c.group.Forget(key)
		if c.items.Remove(key) {
			removed++
		}
	}
	return removed
}

func (c *Cache) generation(logoPath string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[filepath.Base(logoPath)]
}

// commit moves a finished scale into place unless the logo was replaced while
// it was being built, in which case the artifact is discarded.
func (c *Cache) commit(logoPath string, gen uint64, key, tmp, dest string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[filepath.Base(logoPath)] != gen {
		os.Remove(tmp)
		return errors.New("logo replaced while scaling")
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	c.items.Add(key, dest)
	return nil
}

// Len returns the number of cached artifacts.
func (c *Cache) Len() int {
	return c.items.Len()
}

func (c *Cache) lookup(key string) (string, bool) {
	path, ok := c.items.Get(key)
	if !ok {
		return "", false
	}
	if !fileExists(path) {
		c.items.Remove(key)
		return "", false
	}
	return path, true
}

// build scales into a private temp file and returns its path, so a
// concurrent reader never sees a partially written artifact.
func (c *Cache) build(ctx context.Context, logoPath string, height int) (string, error) {
	tmp, err := os.CreateTemp(c.dir, tempPrefix+"*"+filepath.Ext(Key(logoPath, height)))
	if err != nil {
		return "", &ScaleError{Logo: logoPath, Height: height, Err: err}
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := c.scaler.ScaleImage(ctx, logoPath, tmpPath, height); err != nil {
		os.Remove(tmpPath)
		return "", &ScaleError{Logo: logoPath, Height: height, Err: err}
	}
	if info, err := os.Stat(tmpPath); err != nil || info.Size() == 0 {
		os.Remove(tmpPath)
		return "", &ScaleError{Logo: logoPath, Height: height, Err: errors.New("scaler produced no output")}
	}
	return tmpPath, nil
}

func (c *Cache) evicted(key, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Failed to remove evicted logo %s: %v", path, err)
		return
	}
	logger.Debugf("logo cache evicted %s", key)
}

func (c *Cache) load() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	type found struct {
		name string
		mod  int64
	}
	var files []found
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), tempPrefix) {
			os.Remove(filepath.Join(c.dir, entry.Name()))
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, found{name: entry.Name(), mod: info.ModTime().UnixNano()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mod < files[j].mod })
	for _, f := range files {
		c.items.Add(f.name, filepath.Join(c.dir, f.name))
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
