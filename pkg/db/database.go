package db

import (
	"errors"
	"time"

	"github.com/gdelfava/domaintools/pkg/model"
)

// ErrTenantNotFound is returned when no tenant exists for a slug.
var ErrTenantNotFound = errors.New("tenant not found")

// ListOptions filter and page the mirrored domain listing.
type ListOptions struct {
	Page    int
	PerPage int
	Status  string
	Search  string
}

type Database interface {
	// Tenant registry.
	CreateTenant(tenant *Tenant) error
	GetTenantBySlug(slug string) (Tenant, error)
	ListTenants() ([]Tenant, error)
	UpdateTenantCredentials(slug, endpoint, identifier, secret string, insecureSkipVerify bool) error

	// Domain mirror.
	UpsertDomain(tenantID uint, d model.Domain) (created bool, err error)
	UpsertNameservers(tenantID uint, externalID string, ns model.NameserverSet) error
	ListDomains(tenantID uint, opts ListOptions) ([]DomainRecord, int64, error)
	CountDomainsByStatus(tenantID uint) (map[string]int64, error)

	// Sync run accounting.
	CreateSyncLog(log *SyncLog) error
	CloseSyncLog(log *SyncLog) error
	LatestSyncLog(tenantID uint) (SyncLog, error)

	// Export job persistence (see JobStore for the jobs.Store adapter).
	SaveExportJob(job *ExportJob) error
	GetExportJob(tenantSlug string, batchNumber int) (ExportJob, error)
	DeleteExportJob(tenantSlug string, batchNumber int) error

	// Retention sweep.
	PurgeOldSyncLogs(maxAge time.Duration) (int64, error)
	PurgeOldExportJobs(maxAge time.Duration) (int64, error)
}
