package backend

import (
	"context"
	"encoding/json"

	"github.com/gdelfava/domaintools/pkg/db"
	"github.com/gdelfava/domaintools/pkg/export"
	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/gdelfava/domaintools/pkg/nsupdate"
	"github.com/gdelfava/domaintools/pkg/upstream"
)

type Backend interface {
	// Tenant registry.
	RegisterTenant(input RegisterTenantInput) (model.TenantResponse, error)
	GetTenant(slug string) (db.Tenant, error)
	UpdateTenantCredentials(slug, endpoint, identifier, secret string, insecureSkipVerify bool) error
	Credentials(tenant db.Tenant) upstream.Credentials

	// Batched export.
	StartExport(ctx context.Context, tenant db.Tenant, batchNumber, batchSize int) (*model.StartExportResponse, error)
	ExportStep(ctx context.Context, tenant db.Tenant, batchNumber, currentIndex int) (*model.ProgressResponse, error)
	RunExportBatch(ctx context.Context, tenant db.Tenant, batchNumber, batchSize int) (*export.BatchSummary, error)
	ListExportFiles(tenant db.Tenant) (model.CSVFilesResponse, error)

	// Nameserver updates.
	UpdateNameservers(ctx context.Context, tenant db.Tenant, domains []string, ns1, ns2 string) (*model.UpdateNameserversResponse, error)
	AuditEvents(tenant db.Tenant, limit int) ([]nsupdate.AuditEvent, error)

	// Local mirror.
	SyncBatch(ctx context.Context, tenant db.Tenant, batchNumber, batchSize int, withNameservers bool) (*model.SyncReport, error)
	ListMirroredDomains(tenant db.Tenant, opts db.ListOptions) ([]db.DomainRecord, int64, error)
	DomainStatusCounts(tenant db.Tenant) (map[string]int64, error)
	LatestSync(tenant db.Tenant) (db.SyncLog, error)

	// Upstream passthrough.
	Inventory(ctx context.Context, tenant db.Tenant) ([]model.Domain, error)
	Stats(ctx context.Context, tenant db.Tenant) (*upstream.Stats, error)
	Servers(ctx context.Context, tenant db.Tenant) (json.RawMessage, error)
	TestConnection(ctx context.Context, tenant db.Tenant) error

	StartRetentionDaemon(stopCh <-chan struct{})
}
