package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gdelfava/domaintools/pkg/jobs"
	"github.com/gdelfava/domaintools/pkg/model"
)

// JobStore adapts the relational store to jobs.Store so progress-mode export
// batches survive a process restart.
type JobStore struct {
	db Database
}

func NewJobStore(db Database) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Save(_ context.Context, job *jobs.Job) error {
	domains, err := json.Marshal(job.Domains)
	if err != nil {
		return err
	}
	outcomes, err := json.Marshal(job.Outcomes)
	if err != nil {
		return err
	}

	return s.db.SaveExportJob(&ExportJob{
		JobID:        job.ID,
		TenantSlug:   job.Tenant,
		BatchNumber:  job.BatchNumber,
		BatchSize:    job.BatchSize,
		BatchOffset:  job.Offset,
		TotalInBatch: job.TotalInBatch,
		CurrentIndex: job.CurrentIndex,
		Status:       string(job.Status),
		Domains:      string(domains),
		Outcomes:     string(outcomes),
	})
}

func (s *JobStore) Get(_ context.Context, tenant string, batchNumber int) (*jobs.Job, error) {
	record, err := s.db.GetExportJob(tenant, batchNumber)
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, jobs.ErrNotFound
	}

	job := &jobs.Job{
		ID:           record.JobID,
		Tenant:       record.TenantSlug,
		BatchNumber:  record.BatchNumber,
		BatchSize:    record.BatchSize,
		Offset:       record.BatchOffset,
		TotalInBatch: record.TotalInBatch,
		CurrentIndex: record.CurrentIndex,
		Status:       model.JobStatus(record.Status),
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
	if record.Domains != "" {
		if err := json.Unmarshal([]byte(record.Domains), &job.Domains); err != nil {
			return nil, err
		}
	}
	if record.Outcomes != "" {
		if err := json.Unmarshal([]byte(record.Outcomes), &job.Outcomes); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func (s *JobStore) Delete(_ context.Context, tenant string, batchNumber int) error {
	return s.db.DeleteExportJob(tenant, batchNumber)
}

func (s *JobStore) PurgeExpired(_ context.Context, maxAge time.Duration) (int, error) {
	deleted, err := s.db.PurgeOldExportJobs(maxAge)
	return int(deleted), err
}
