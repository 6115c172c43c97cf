package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"automark/config"
	"automark/destinations"
	"automark/failures"
	"automark/logger"
	"automark/models"
	"automark/success"
	"automark/watermark"
	writerbackends "automark/writerBackends"
)

// ErrJobNotFound is returned when a worker picks up an id the store no longer knows
var ErrJobNotFound = errors.New("job not found")

// Progress milestones reported while a job is processing
const (
	ProgressAccepted = 10
	ProgressRendered = 90
	ProgressDone     = 100
)

const maxErrorLen = 1024

// Synthesizer builds the transcoder command for a job
type Synthesizer interface {
	Synthesize(ctx context.Context, req watermark.Request) (watermark.Command, error)
}

// Executor runs a transcoder command and verifies its output
type Executor interface {
	Execute(ctx context.Context, cmd watermark.Command, onRendered func()) (string, error)
}

// Processor drives a single job through synthesis, render and verification
type Processor struct {
	Store     *Store
	Synth     Synthesizer
	Exec      Executor
	OutputDir string
}

// Process runs the job's whole pipeline synchronously. Every failure ends with
// the job marked failed; the returned error is for the caller's log only.
func (p *Processor) Process(ctx context.Context, jobID string) (err error) {
	job, ok := p.Store.Get(jobID)
	if !ok {
		logger.Errorf("Job %s not found", jobID)
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	logger.Infof("Starting watermark job %s: %s with %s", jobID, job.InputPath, job.LogoPath)
	p.Store.Update(jobID, Update{Status: models.StatusProcessing, Progress: Progress(0)})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.Errorf("Job %s panicked: %v\n%s", jobID, r, debug.Stack())
			p.fail(job, err)
		}
	}()

	logger.Debugf("Job %s: loading video %s", jobID, job.InputPath)
	p.Store.Update(jobID, Update{Status: models.StatusProcessing, Progress: Progress(ProgressAccepted)})

	outputDir := p.OutputDir
	if outputDir == "" {
		outputDir = config.GetOutputDir()
	}

	cmd, err := p.Synth.Synthesize(ctx, watermark.Request{
		VideoPath: job.InputPath,
		LogoPath:  job.LogoPath,
		OutputDir: outputDir,
		Position:  job.Position,
		Scale:     job.Scale,
	})
	if err != nil {
		return p.fail(job, fmt.Errorf("synthesize command: %w", err))
	}
	logger.Debugf("Job %s: logo %s at %dpx (video height %d, probed=%t)",
		jobID, filepath.Base(cmd.LogoInput), cmd.LogoHeight, cmd.VideoHeight, cmd.HeightProbed)

	outputPath, err := p.Exec.Execute(ctx, cmd, func() {
		logger.Debugf("Job %s: watermark applied, verifying output", jobID)
		p.Store.Update(jobID, Update{Status: models.StatusProcessing, Progress: Progress(ProgressRendered)})
	})
	if err != nil {
		return p.fail(job, err)
	}

	outputName := filepath.Base(outputPath)
	p.Store.Update(jobID, Update{
		Status:     models.StatusCompleted,
		OutputName: outputName,
		OutputPath: outputPath,
		Progress:   Progress(ProgressDone),
	})
	logger.Infof("Job %s completed: %s", jobID, outputName)

	done, _ := p.Store.Get(jobID)
	p.recordSuccess(ctx, done)
	return nil
}

func (p *Processor) fail(job models.Job, cause error) error {
	msg := cause.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	p.Store.Update(job.ID, Update{Status: models.StatusFailed, Progress: Progress(0), Error: msg})
	logger.Errorf("Job %s failed: %v", job.ID, cause)

	if current, ok := p.Store.Get(job.ID); ok {
		if current.Status != models.StatusFailed {
			// already terminal, the failure only concerns post-completion work
			return cause
		}
		job = current
	}
	if storeErr := failures.StoreFailure(job.ID, cause, job); storeErr != nil {
		logger.Debugf("Failure record for %s not stored: %v", job.ID, storeErr)
	}
	return cause
}

// recordSuccess publishes the output to the job's destination, if any, and
// stores the completion record. Neither step can change the job's state.
func (p *Processor) recordSuccess(ctx context.Context, job models.Job) {
	outcome := success.Outcome{OutputName: job.OutputName}
	if info, err := os.Stat(job.OutputPath); err == nil {
		outcome.OutputSize = info.Size()
	}

	if job.Destination != "" {
		dest, err := p.publish(ctx, job)
		outcome.PublishedTo = dest
		if err != nil {
			logger.Errorf("Failed to publish output of job %s: %v", job.ID, err)
			outcome.PublishError = err.Error()
		}
	}

	if err := success.StoreSuccess(job.ID, job, outcome); err != nil {
		logger.Debugf("Success record for %s not stored: %v", job.ID, err)
	}
}

func (p *Processor) publish(ctx context.Context, job models.Job) (string, error) {
	dest, err := destinations.Get(job.Destination)
	if err != nil {
		return "", fmt.Errorf("lookup destination %s: %w", job.Destination, err)
	}

	reader, err := os.Open(job.OutputPath)
	if err != nil {
		return dest.Type, fmt.Errorf("failed to open output %s: %w", job.OutputPath, err)
	}
	defer reader.Close()

	accessInfo := prepareAccessInfo(dest, job.OutputName)
	if err := writerbackends.WriteOutput(ctx, accessInfo, reader, dest.Type); err != nil {
		return dest.Type, fmt.Errorf("failed to write %s to %s: %w", job.OutputName, dest.Type, err)
	}
	logger.Infof("Published %s to %s", job.OutputName, dest.Type)
	return dest.Type, nil
}

// prepareAccessInfo merges the destination settings with the per-file fields
// every backend expects.
func prepareAccessInfo(dest destinations.Destination, filename string) map[string]string {
	accessInfo := make(map[string]string, len(dest.Settings)+3)
	for k, v := range dest.Settings {
		accessInfo[k] = v
	}
	accessInfo["filename"] = filename

	prefix := dest.Settings["prefix"]
	object := filename
	if prefix != "" {
		object = prefix + "/" + filename
	}

	switch dest.Type {
	case "directServe":
		accessInfo["baseDir"] = config.GetDirectServeBaseDir()
		accessInfo["folder"] = dest.Settings["folder"]
	case "s3":
		accessInfo["key"] = object
	case "gcs", "minio":
		accessInfo["object"] = object
	case "sftp":
		if dir := dest.Settings["remoteDir"]; dir != "" {
			accessInfo["remotePath"] = strings.TrimRight(dir, "/") + "/" + filename
		} else if accessInfo["remotePath"] == "" {
			accessInfo["remotePath"] = filename
		}
	}
	return accessInfo
}
