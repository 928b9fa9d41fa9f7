package delayedjob

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNilJob is returned when a nil job is registered.
	ErrNilJob = errors.New("delayedjob: nil job")

	// ErrDuplicateJob is returned when a job name is already registered.
	ErrDuplicateJob = errors.New("delayedjob: duplicate job name")
)

// JobStatus is a point-in-time snapshot of one registered job.
type JobStatus struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Terminated bool   `json:"terminated"`
}

// Registry holds named jobs for lookup, bulk shutdown and inspection.
// All methods are safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewRegistry allocates and returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// Register adds a job under its name. Returns ErrDuplicateJob when the
// name is taken.
func (r *Registry) Register(j *Job) error {
	if j == nil {
		return ErrNilJob
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[j.Name()]; ok {
		return ErrDuplicateJob
	}

	r.jobs[j.Name()] = j

	return nil
}

// Get returns the job registered under name.
func (r *Registry) Get(name string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[name]

	return j, ok
}

// Names returns the registered job names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Snapshot returns the status of every registered job, sorted by name.
func (r *Registry) Snapshot() []JobStatus {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))

	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()

	statuses := make([]JobStatus, 0, len(jobs))

	for _, j := range jobs {
		state := j.State()

		statuses = append(statuses, JobStatus{
			Name:       j.Name(),
			State:      state.String(),
			Terminated: state == StateTerminated,
		})
	}

	sort.Slice(statuses, func(i, k int) bool { return statuses[i].Name < statuses[k].Name })

	return statuses
}

// TerminateAll terminates every registered job. It does not wait; pair
// with WaitAll for a bounded shutdown.
func (r *Registry) TerminateAll() {
	for _, j := range r.snapshot() {
		j.Terminate()
	}
}

// WaitAll waits up to timeout, shared across all jobs, for every
// registered job to terminate. Reports whether all of them did.
func (r *Registry) WaitAll(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for _, j := range r.snapshot() {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}

		j.WaitForTermination(remaining)

		if !j.IsTerminated() {
			return false
		}
	}

	return true
}

func (r *Registry) snapshot() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}

	return jobs
}
