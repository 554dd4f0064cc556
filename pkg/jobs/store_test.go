package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Job{
		ID:           "j1",
		Tenant:       "tenant-a",
		BatchNumber:  2,
		BatchSize:    200,
		Offset:       200,
		TotalInBatch: 150,
		Status:       model.JobStatusReady,
	}))

	job, err := s.Get(ctx, "tenant-a", 2)
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, 150, job.TotalInBatch)
	assert.False(t, job.CreatedAt.IsZero())

	_, err = s.Get(ctx, "tenant-b", 2)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "tenant-a", 2))
	_, err = s.Get(ctx, "tenant-a", 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreKeysByTenant(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Job{ID: "a", Tenant: "tenant-a", BatchNumber: 1}))
	require.NoError(t, s.Save(ctx, &Job{ID: "b", Tenant: "tenant-b", BatchNumber: 1}))

	a, err := s.Get(ctx, "tenant-a", 1)
	require.NoError(t, err)
	b, err := s.Get(ctx, "tenant-b", 1)
	require.NoError(t, err)

	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "b", b.ID, "same batch number must not collide across tenants")
}

func TestMemoryStoreSaveCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := &Job{ID: "j1", Tenant: "tenant-a", BatchNumber: 1}
	require.NoError(t, s.Save(ctx, job))

	job.Outcomes = append(job.Outcomes, model.DomainOutcome{DomainName: "mutated.com"})

	got, err := s.Get(ctx, "tenant-a", 1)
	require.NoError(t, err)
	assert.Empty(t, got.Outcomes, "stored job must not alias the caller's slices")
}

func TestMemoryStorePurgeExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, &Job{ID: "old", Tenant: "tenant-a", BatchNumber: 1}))

	now = now.Add(2 * time.Hour)
	require.NoError(t, s.Save(ctx, &Job{ID: "new", Tenant: "tenant-a", BatchNumber: 2}))

	purged, err := s.PurgeExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = s.Get(ctx, "tenant-a", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "tenant-a", 2)
	assert.NoError(t, err)
}
