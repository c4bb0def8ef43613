package jobs

import (
	"maps"
	"sync"
	"time"
)

// Job statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Job represents the state of a single asynchronous merge
type Job struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	Progress  int               `json:"progress"`
	Operation string            `json:"operation"` // e.g., "fetching", "merging", "optimizing"
	CreatedAt time.Time         `json:"created_at"`

	finishedAt time.Time
	result     []byte
	filename   string
}

func (j *Job) terminal() bool {
	return j.Status == StatusSuccess || j.Status == StatusError
}

// Finished reports whether the job has succeeded or failed.
func (j *Job) Finished() bool {
	return j.terminal()
}

func (j *Job) snapshot() *Job {
	return &Job{
		Status:    j.Status,
		Message:   j.Message,
		Data:      maps.Clone(j.Data),
		Progress:  j.Progress,
		Operation: j.Operation,
		CreatedAt: j.CreatedAt,
	}
}

// Store holds all jobs in memory
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	watchers map[string][]chan *Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job), watchers: make(map[string][]chan *Job)}
}

// Subscribe returns a channel that receives job updates for the given id.
// The returned function should be called to unsubscribe when done.
func (s *Store) Subscribe(id string) (<-chan *Job, func()) {
	ch := make(chan *Job, 256)
	s.mu.Lock()
	s.watchers[id] = append(s.watchers[id], ch)
	var current *Job
	if job := s.jobs[id]; job != nil {
		current = job.snapshot()
	}
	s.mu.Unlock()

	if current != nil {
		ch <- current
	}

	return ch, func() {
		s.mu.Lock()
		watchers := s.watchers[id]
		for i, c := range watchers {
			if c == ch {
				s.watchers[id] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		if len(s.watchers[id]) == 0 {
			delete(s.watchers, id)
		}
		s.mu.Unlock()
		close(ch)
	}
}

func (s *Store) broadcastLocked(id string) {
	job := s.jobs[id]
	jobCopy := job.snapshot()
	isTerminal := job.terminal()
	watchers := append([]chan *Job(nil), s.watchers[id]...)

	for _, ch := range watchers {
		if isTerminal {
			select {
			case ch <- jobCopy:
			case <-time.After(5 * time.Second):
			}
		} else {
			select {
			case ch <- jobCopy:
			default:
			}
		}
	}
}

func (s *Store) Create(id string) {
	s.mu.Lock()
	s.jobs[id] = &Job{Status: StatusPending, CreatedAt: time.Now()}
	s.broadcastLocked(id)
	s.mu.Unlock()
}

func (s *Store) Update(id, status, msg string, data map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = status
		j.Message = msg
		j.Data = data
		if j.terminal() {
			j.finishedAt = time.Now()
		}
		s.broadcastLocked(id)
	}
}

// UpdateWithOperation updates message, optional data, and operation type
func (s *Store) UpdateWithOperation(id, status, msg string, data map[string]string, operation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = status
		j.Message = msg
		j.Data = data
		j.Operation = operation
		if j.terminal() {
			j.finishedAt = time.Now()
		}
		s.broadcastLocked(id)
	}
}

// UpdateProgress sets the progress (0-100) for a job.
func (s *Store) UpdateProgress(id string, p int) {
	if p < 0 {
		p = 0
	} else if p > 100 {
		p = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Progress = p
		s.broadcastLocked(id)
	}
}

// Complete stores the output document and marks the job successful.
func (s *Store) Complete(id string, pdf []byte, filename, msg string, data map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.result = pdf
		j.filename = filename
		j.Status = StatusSuccess
		j.Message = msg
		j.Data = data
		j.Progress = 100
		j.Operation = ""
		j.finishedAt = time.Now()
		s.broadcastLocked(id)
	}
}

// Result returns the output document of a successful job.
func (s *Store) Result(id string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != StatusSuccess || j.result == nil {
		return nil, "", false
	}
	return j.result, j.filename, true
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return j.snapshot(), true
}

// Prune drops finished jobs, and their results, that ended before cutoff.
func (s *Store) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if j.terminal() && j.finishedAt.Before(cutoff) && len(s.watchers[id]) == 0 {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}
