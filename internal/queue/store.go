// Package queue holds the in-memory email job store. Jobs live for the whole
// process lifetime; nothing is evicted.
package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"CardScan/internal/models"
)

var (
	ErrJobNotFound       = errors.New("email job not found")
	ErrInvalidTransition = errors.New("email job is no longer queued")
)

type Store struct {
	mu   sync.Mutex
	jobs []*models.EmailJob
	byID map[string]*models.EmailJob

	// head is the index of the first job that may still be queued. Jobs never
	// return to queued, so everything before head is settled.
	head int

	ids IDGenerator
	now func() time.Time
}

type Option func(*Store)

func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		byID: make(map[string]*models.EmailJob),
		ids:  NewIDGenerator(),
		now:  time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue appends one queued job per input, in input order, all under a
// freshly generated batch id.
func (s *Store) Enqueue(inputs []models.JobInput) (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	batchID := s.ids.BatchID(now)

	for _, in := range inputs {
		job := &models.EmailJob{
			ID:             s.ids.JobID(),
			BatchID:        batchID,
			ToEmail:        in.ToEmail,
			ToName:         in.ToName,
			Subject:        in.Subject,
			Body:           in.Body,
			AttachmentPath: in.AttachmentPath,
			SignaturePath:  in.SignaturePath,
			Status:         models.StatusQueued,
			CreatedAt:      now,
		}
		s.jobs = append(s.jobs, job)
		s.byID[job.ID] = job
	}

	return batchID, len(inputs)
}

// NextQueued returns the earliest-inserted job still queued.
func (s *Store) NextQueued() (models.EmailJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.head < len(s.jobs) && s.jobs[s.head].Status != models.StatusQueued {
		s.head++
	}
	if s.head == len(s.jobs) {
		return models.EmailJob{}, false
	}
	return *s.jobs[s.head], true
}

func (s *Store) MarkSent(id string) error {
	return s.settle(id, func(job *models.EmailJob) {
		sentAt := s.now()
		job.Status = models.StatusSent
		job.SentAt = &sentAt
	})
}

func (s *Store) MarkFailed(id, errMsg string) error {
	return s.settle(id, func(job *models.EmailJob) {
		job.Status = models.StatusFailed
		job.ErrorMsg = errMsg
		job.Attempts++
	})
}

func (s *Store) settle(id string, apply func(*models.EmailJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != models.StatusQueued {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, job.Status)
	}
	apply(job)
	return nil
}

// Get returns a copy of one job.
func (s *Store) Get(id string) (models.EmailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[id]
	if !ok {
		return models.EmailJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return *job, nil
}

// Jobs returns a snapshot of every job in insertion order.
func (s *Store) Jobs() []models.EmailJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.EmailJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

// Batch returns the jobs of one batch in insertion order.
func (s *Store) Batch(batchID string) []models.EmailJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.EmailJob
	for _, j := range s.jobs {
		if j.BatchID == batchID {
			out = append(out, *j)
		}
	}
	return out
}

// Status aggregates counts. processing comes from the dispatcher, the store
// does not know about drains.
func (s *Store) Status(processing bool) models.QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return countStatus(s.jobs, processing)
}

func countStatus(jobs []*models.EmailJob, processing bool) models.QueueStatus {
	st := models.QueueStatus{Total: len(jobs), Processing: processing}
	for _, j := range jobs {
		switch j.Status {
		case models.StatusQueued:
			st.Queued++
		case models.StatusSent:
			st.Sent++
		case models.StatusFailed:
			st.Failed++
		}
	}
	return st
}

// BatchStatus aggregates a single batch.
func BatchStatus(jobs []models.EmailJob, processing bool) models.QueueStatus {
	ptrs := make([]*models.EmailJob, len(jobs))
	for i := range jobs {
		ptrs[i] = &jobs[i]
	}
	return countStatus(ptrs, processing)
}
