package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// MaxWorkersCeiling caps the pool no matter how many cores are available.
const MaxWorkersCeiling = 4

// getStorageDir determines where uploads, outputs and the logo cache live.
// Priority: AUTOMARK_STORAGE_DIR > STORAGE_DIR > "storage"
func getStorageDir() string {
	if dir := os.Getenv("AUTOMARK_STORAGE_DIR"); dir != "" {
		return dir
	}
	if dir := os.Getenv("STORAGE_DIR"); dir != "" {
		return dir
	}
	return "storage"
}

// GetStorageDir returns the storage root. The environment is read on every call
// so tests and operators can repoint it without restarting.
func GetStorageDir() string {
	return getStorageDir()
}

// GetInputDir returns the directory uploaded videos are written to.
func GetInputDir() string {
	return filepath.Join(GetStorageDir(), "inputs")
}

// GetLogoDir returns the directory uploaded logos are written to.
func GetLogoDir() string {
	return filepath.Join(GetStorageDir(), "logos")
}

// GetLogoCacheDir returns the directory holding pre-scaled logos.
// Path: {STORAGE}/logos/cache
func GetLogoCacheDir() string {
	return filepath.Join(GetLogoDir(), "cache")
}

// GetOutputDir returns the directory watermarked videos are rendered into.
func GetOutputDir() string {
	return filepath.Join(GetStorageDir(), "outputs")
}

// GetErrorLogPath returns the flat file that receives transcoder diagnostics.
func GetErrorLogPath() string {
	return filepath.Join(GetStorageDir(), "errors.log")
}

// GetProcessingLogPath returns the file the logger mirrors its output to.
func GetProcessingLogPath() string {
	return filepath.Join(GetStorageDir(), "processing.log")
}

// GetDataDir returns where the history databases are kept.
// Priority: AUTOMARK_DATA_DIR > "./data"
func GetDataDir() string {
	if dir := os.Getenv("AUTOMARK_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// GetFailuresDBPath returns the full path to the failures database.
// Path: {DATA_DIR}/failures.db
func GetFailuresDBPath() string {
	return filepath.Join(GetDataDir(), "failures.db")
}

// GetSuccessDBPath returns the full path to the success database.
// Path: {DATA_DIR}/success.db
func GetSuccessDBPath() string {
	return filepath.Join(GetDataDir(), "success.db")
}

// GetDestinationsDBPath returns the full path to the publish destination registry.
// Path: {DATA_DIR}/destinations.db
func GetDestinationsDBPath() string {
	return filepath.Join(GetDataDir(), "destinations.db")
}

// GetDirectServeBaseDir returns the base directory for the directServe publisher.
// Configurable via AUTOMARK_SERVE_DIR, not by clients.
func GetDirectServeBaseDir() string {
	return valueOrDefault(os.Getenv("AUTOMARK_SERVE_DIR"), "./serve")
}

// GetListenAddr returns the HTTP listen address.
func GetListenAddr() string {
	return valueOrDefault(os.Getenv("AUTOMARK_ADDR"), ":8000")
}

// GetAPIPrefix returns the path prefix all API routes are mounted under.
func GetAPIPrefix() string {
	prefix := strings.TrimRight(valueOrDefault(os.Getenv("AUTOMARK_API_PREFIX"), "/api"), "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// GetAllowedOrigins returns the CORS allow-list, comma separated in the environment.
func GetAllowedOrigins() []string {
	raw := valueOrDefault(os.Getenv("AUTOMARK_ALLOW_ORIGINS"), "*")
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// GetFFmpegPath returns the transcoder binary.
func GetFFmpegPath() string {
	return valueOrDefault(os.Getenv("FFMPEG_PATH"), "ffmpeg")
}

// GetFFprobePath returns the probing binary.
func GetFFprobePath() string {
	return valueOrDefault(os.Getenv("FFPROBE_PATH"), "ffprobe")
}

// GetFFmpegThreads returns the FFMPEG_THREADS override, 0 when unset or invalid.
func GetFFmpegThreads() int {
	n := parseInt(os.Getenv("FFMPEG_THREADS"), 0)
	if n < 0 {
		return 0
	}
	return n
}

// GetMaxWorkers returns the worker pool size: AUTOMARK_MAX_WORKERS when set,
// otherwise one slot per core. Either way it is capped at MaxWorkersCeiling.
func GetMaxWorkers() int {
	n := parseInt(os.Getenv("AUTOMARK_MAX_WORKERS"), 0)
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	if n > MaxWorkersCeiling {
		n = MaxWorkersCeiling
	}
	return n
}

// GetRenderTimeout bounds a single transcode. Zero disables the bound.
func GetRenderTimeout() time.Duration {
	return parseDuration(os.Getenv("AUTOMARK_RENDER_TIMEOUT"), 30*time.Minute)
}

// GetLogoCacheSize returns how many scaled logos are kept on disk.
func GetLogoCacheSize() int {
	n := parseInt(os.Getenv("AUTOMARK_LOGO_CACHE_SIZE"), 64)
	if n < 1 {
		return 64
	}
	return n
}

// GetMaxUploadBytes returns the request body limit for multipart uploads.
func GetMaxUploadBytes() int64 {
	mb := parseInt(os.Getenv("AUTOMARK_MAX_UPLOAD_MB"), 512)
	if mb < 1 {
		mb = 512
	}
	return int64(mb) << 20
}

// GetLogLevel returns the configured log level name.
func GetLogLevel() string {
	return strings.ToLower(strings.TrimSpace(valueOrDefault(os.Getenv("AUTOMARK_LOG_LEVEL"), "info")))
}

// GetLogFormat returns "text" or "json".
func GetLogFormat() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("AUTOMARK_LOG_FORMAT")), "json") {
		return "json"
	}
	return "text"
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
