package job

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the single source of truth for job existence and state.
// Each job is mutated only by its owning runner goroutine, but status polls
// read concurrently, so every read hands out a consistent snapshot taken
// under the lock.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty job registry
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// Create inserts a new pending job and returns a snapshot of it
func (r *Registry) Create(files []InputFile, sourceFormat, targetFormat string) Job {
	j := &Job{
		ID:           uuid.New().String(),
		Files:        append([]InputFile(nil), files...),
		SourceFormat: strings.ToLower(strings.TrimSpace(sourceFormat)),
		TargetFormat: strings.ToLower(strings.TrimSpace(targetFormat)),
		State:        StatePending,
		Results:      []FileResult{},
		CreatedAt:    time.Now(),
	}

	r.mu.Lock()
	r.jobs[j.ID] = j
	r.mu.Unlock()

	return j.snapshot()
}

// Get returns a read-only snapshot of the job
func (r *Registry) Get(jobID string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j.snapshot(), nil
}

// Transition applies one atomic mutation to the job. Readers never observe
// a partially applied mutation.
func (r *Registry) Transition(jobID string, mutate func(*Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}

	mutate(j)
	return nil
}

// EvictOlderThan removes job records created before the cutoff, regardless
// of state, and returns the count removed
func (r *Registry) EvictOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, j := range r.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of tracked jobs
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
