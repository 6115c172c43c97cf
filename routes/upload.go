package routes

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"automark/logger"
	"automark/models"
)

// memory budget for multipart parsing; larger parts spill to temp files
const multipartMemory = 32 << 20

// saveUpload streams an uploaded part to dir/name through a temp file so a
// reader never sees a partial file. Returns the final path and byte count.
func saveUpload(dir, name string, part multipart.File) (string, int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, part)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write %s: %w", name, err)
	}

	dest := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", 0, err
	}
	return dest, n, nil
}

func saveHeader(dir string, fh *multipart.FileHeader) (string, string, int64, error) {
	name, ok := safeName(filepath.Base(fh.Filename))
	if !ok {
		return "", "", 0, fmt.Errorf("invalid file name %q", fh.Filename)
	}
	part, err := fh.Open()
	if err != nil {
		return "", "", 0, err
	}
	defer part.Close()

	path, n, err := saveUpload(dir, name, part)
	return name, path, n, err
}

// UploadHandler accepts one logo and any number of videos, stores them and
// queues one job per video. position, scale and destination may come from the
// form or the query string.
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	videos := r.MultipartForm.File["videos"]
	if len(videos) == 0 {
		writeError(w, http.StatusBadRequest, "At least one file is required in field \"videos\"")
		return
	}
	logos := r.MultipartForm.File["logo"]
	if len(logos) != 1 {
		writeError(w, http.StatusBadRequest, "Exactly one file is required in field \"logo\"")
		return
	}

	scale, err := parseScale(r.FormValue("scale"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	destination := r.FormValue("destination")
	position, s, err := jobParams(r.FormValue("position"), scale, destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logoName, logoPath, _, err := saveHeader(h.LogoDir, logos[0])
	if err != nil {
		logger.Errorf("Failed to save logo: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.Logos != nil {
		if n := h.Logos.Forget(logoName); n > 0 {
			logger.Debugf("Logo %s replaced, dropped %d cached variants", logoName, n)
		}
	}

	type saved struct {
		name, path string
		size       int64
	}
	inputs := make([]saved, 0, len(videos))
	for _, fh := range videos {
		name, path, size, err := saveHeader(h.InputDir, fh)
		if err != nil {
			logger.Errorf("Failed to save video %s: %v", fh.Filename, err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		inputs = append(inputs, saved{name, path, size})
	}

	jobs := make([]models.Job, 0, len(inputs))
	for _, in := range inputs {
		job := h.Store.Create(models.JobRequest{
			InputName:   in.name,
			LogoName:    logoName,
			InputPath:   in.path,
			LogoPath:    logoPath,
			Position:    position,
			Scale:       s,
			FileSize:    in.size,
			Destination: destination,
		})
		if err := h.Pool.Submit(job.ID); err != nil {
			logger.Errorf("Failed to submit job %s: %v (%d earlier jobs from this upload stay queued)", job.ID, err, len(jobs))
			h.Store.Fail(job.ID, errQueueClosed)
			writeError(w, http.StatusServiceUnavailable, "Job queue is not accepting work")
			return
		}
		jobs = append(jobs, job)
	}

	logger.Infof("Queued %d jobs with logo %s (%s, scale %.2f)", len(jobs), logoName, position, s)
	writeJSON(w, http.StatusOK, jobs)
}
