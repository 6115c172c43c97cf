package job

import (
	"sync"
	"time"

	"automark/models"

	"github.com/google/uuid"
)

// Update is a partial modification of a job. Status is always applied; the
// output reference is replaced (cleared when empty); Progress only when set.
type Update struct {
	Status     models.JobStatus
	OutputName string
	OutputPath string
	Progress   *int
	Error      string
}

// Progress is a helper for building an Update.
func Progress(p int) *int {
	return &p
}

// Store is the authoritative in-memory record of every submitted job
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*models.Job
	order []string // creation order
	now   func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*models.Job),
		now:  time.Now,
	}
}

// Create inserts a queued job with a fresh id. Zero position and scale take
// their defaults.
func (s *Store) Create(req models.JobRequest) models.Job {
	position := req.Position
	if position == "" {
		position = models.DefaultPosition
	}
	scale := req.Scale
	if scale == 0 {
		scale = models.DefaultScale
	}

	now := s.now()
	job := &models.Job{
		ID:          uuid.New().String(),
		Status:      models.StatusQueued,
		InputName:   req.InputName,
		LogoName:    req.LogoName,
		InputPath:   req.InputPath,
		LogoPath:    req.LogoPath,
		Position:    position,
		Scale:       scale,
		FileSize:    req.FileSize,
		Destination: req.Destination,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return *job
}

// Get returns a snapshot of the job, false when it does not exist
func (s *Store) Get(id string) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return models.Job{}, false
	}
	return *job, true
}

// List returns snapshots of all jobs in creation order
func (s *Store) List() []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]models.Job, 0, len(s.order))
	for _, id := range s.order {
		jobs = append(jobs, *s.jobs[id])
	}
	return jobs
}

// Update applies u to the job. Unknown ids and jobs already in a terminal
// state are left untouched.
func (s *Store) Update(id string, u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists || job.Status.Terminal() {
		return
	}

	job.Status = u.Status
	job.OutputName = u.OutputName
	job.OutputPath = u.OutputPath
	job.Error = u.Error
	if u.Progress != nil {
		p := *u.Progress
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		job.Progress = p
	}
	job.UpdatedAt = s.now()
}

// Fail marks a job that never reached a worker as failed.
func (s *Store) Fail(id, msg string) {
	s.Update(id, Update{Status: models.StatusFailed, Progress: Progress(0), Error: msg})
}

// Count returns how many jobs currently have the given status
func (s *Store) Count(status models.JobStatus) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, job := range s.jobs {
		if job.Status == status {
			n++
		}
	}
	return n
}

// Len returns the number of jobs in the store
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Reset clears every job. Administrative use only.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*models.Job)
	s.order = nil
}
