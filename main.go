package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"automark/config"
	"automark/destinations"
	"automark/encoder"
	"automark/failures"
	"automark/job"
	"automark/logger"
	"automark/logocache"
	"automark/render"
	"automark/routes"
	"automark/success"
	"automark/watermark"

	"github.com/joho/godotenv"
)

// history older than this is dropped by the daily cleanup
const recordRetention = 30 * 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Failed to load .env: %v", err)
	}

	for _, dir := range []string{
		config.GetInputDir(), config.GetLogoDir(), config.GetOutputDir(),
		config.GetLogoCacheDir(), config.GetDataDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	if err := logger.Init(logger.Options{
		Filename: config.GetProcessingLogPath(),
		Console:  true,
		Level:    logger.ParseLevel(config.GetLogLevel()),
		JSON:     config.GetLogFormat() == "json",
	}); err != nil {
		logger.Warnf("Logging to console only: %v", err)
	}
	defer logger.Close()

	logger.Info("Starting automark server initialization")

	if err := destinations.OpenDB(config.GetDestinationsDBPath()); err != nil {
		logger.Fatalf("Failed to initialize destinations store: %v", err)
	}
	defer destinations.CloseDB()

	// history is best effort; jobs run without it
	if err := failures.Init(config.GetFailuresDBPath()); err != nil {
		logger.Errorf("Failed to initialize failure store: %v", err)
	}
	defer failures.Close()
	if err := success.Init(config.GetSuccessDBPath()); err != nil {
		logger.Errorf("Failed to initialize success store: %v", err)
	}
	defer success.Close()
	logger.Info("Databases initialized")

	bins := encoder.Binaries{FFmpeg: config.GetFFmpegPath(), FFprobe: config.GetFFprobePath()}
	encoder.CheckBinaries(bins)

	runner := encoder.ExecRunner{}
	synth := &watermark.Synthesizer{
		FFmpegPath: bins.FFmpeg,
		Threads:    config.GetFFmpegThreads(),
		Prober:     encoder.FFprobe{Path: bins.FFprobe},
	}
	cache, err := logocache.New(config.GetLogoCacheDir(), config.GetLogoCacheSize(),
		encoder.FFmpegScaler{Path: bins.FFmpeg, Runner: runner})
	if err != nil {
		logger.Errorf("Logo cache disabled: %v", err)
	} else {
		synth.Cache = cache
		logger.Infof("Logo cache ready with %d entries", cache.Len())
	}

	store := job.NewStore()
	processor := &job.Processor{
		Store: store,
		Synth: synth,
		Exec: &render.Executor{
			Runner:   runner,
			ErrorLog: config.GetErrorLogPath(),
			Timeout:  config.GetRenderTimeout(),
		},
		OutputDir: config.GetOutputDir(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := job.NewPool(config.GetMaxWorkers(), processor.Process)
	pool.Start(ctx)

	go cleanupRoutine(ctx)

	handler := &routes.Handler{
		Store:          store,
		Pool:           pool,
		InputDir:       config.GetInputDir(),
		LogoDir:        config.GetLogoDir(),
		MaxUploadBytes: config.GetMaxUploadBytes(),
	}
	if cache != nil {
		handler.Logos = cache
	}

	mux := http.NewServeMux()
	mux.Handle("/serve/", http.StripPrefix("/serve/", http.FileServer(http.Dir(config.GetDirectServeBaseDir()))))
	mux.Handle("/", routes.NewRouter(handler, config.GetAPIPrefix(), config.GetAllowedOrigins()))

	srv := &http.Server{
		Addr:              config.GetListenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Automark server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		logger.Warnf("Running jobs cancelled: %v", err)
	}
}

// cleanupRoutine drops old success and failure records once a day
func cleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped")
			return
		case <-ticker.C:
			if n, err := success.CleanupOldRecords(recordRetention); err != nil {
				logger.Errorf("Failed to cleanup old success records: %v", err)
			} else {
				logger.Infof("Removed %d old success records", n)
			}
			if n, err := failures.CleanupOldRecords(recordRetention); err != nil {
				logger.Errorf("Failed to cleanup old failure records: %v", err)
			} else {
				logger.Infof("Removed %d old failure records", n)
			}
		}
	}
}
