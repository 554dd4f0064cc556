package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gdelfava/domaintools/pkg/model"
)

// ErrNotFound is returned when no job exists for (tenant, batch number).
var ErrNotFound = errors.New("job not found")

// Job is the resumable state of one export batch. It lives across many HTTP
// round trips: each progress poll loads it, advances it by one domain, and
// saves it back. Outcomes are additive; nothing rewrites them in place.
type Job struct {
	ID          string
	Tenant      string
	BatchNumber int
	BatchSize   int
	Offset      int

	TotalInBatch int
	CurrentIndex int
	Status       model.JobStatus

	Domains  []model.Domain
	Outcomes []model.DomainOutcome

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists export jobs keyed by (tenant, batch number). At most one
// active job per key is assumed; a second start for the same key replaces the
// first.
type Store interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, tenant string, batchNumber int) (*Job, error)
	Delete(ctx context.Context, tenant string, batchNumber int) error
	PurgeExpired(ctx context.Context, maxAge time.Duration) (int, error)
}

type memoryKey struct {
	tenant      string
	batchNumber int
}

// MemoryStore keeps jobs in process memory. Jobs vanish on restart; use the
// database-backed store when exports must survive one.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[memoryKey]*Job

	// now is swappable for tests.
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[memoryKey]*Job),
		now:  time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := cloneJob(job)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	cp.UpdatedAt = s.now()
	s.jobs[memoryKey{tenant: job.Tenant, batchNumber: job.BatchNumber}] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, tenant string, batchNumber int) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[memoryKey{tenant: tenant, batchNumber: batchNumber}]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) Delete(_ context.Context, tenant string, batchNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, memoryKey{tenant: tenant, batchNumber: batchNumber})
	return nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	purged := 0
	for k, job := range s.jobs {
		if job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, k)
			purged++
		}
	}
	return purged, nil
}

func cloneJob(job *Job) *Job {
	cp := *job
	cp.Domains = append([]model.Domain(nil), job.Domains...)
	cp.Outcomes = append([]model.DomainOutcome(nil), job.Outcomes...)
	return &cp
}
