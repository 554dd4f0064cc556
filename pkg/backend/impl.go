package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gdelfava/domaintools/pkg/cache"
	"github.com/gdelfava/domaintools/pkg/db"
	"github.com/gdelfava/domaintools/pkg/export"
	"github.com/gdelfava/domaintools/pkg/inventory"
	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/gdelfava/domaintools/pkg/nsupdate"
	"github.com/gdelfava/domaintools/pkg/rand"
	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenLength = 32

	statsTTL   = 60 * time.Second
	serversTTL = 300 * time.Second
)

// Config carries the tunables the backend needs beyond its collaborators.
type Config struct {
	CSVDir            string
	SyncLogMaxAge     time.Duration
	JobMaxAge         time.Duration
	CSVMaxAge         time.Duration
	RetentionInterval time.Duration
}

type backend struct {
	db           db.Database
	cache        *cache.Cache
	gw           upstream.Gateway
	fetcher      *inventory.Fetcher
	orchestrator *export.Orchestrator
	updater      *nsupdate.Updater
	cfg          Config
	log          *logrus.Entry
}

func New(database db.Database, c *cache.Cache, gw upstream.Gateway, fetcher *inventory.Fetcher,
	orchestrator *export.Orchestrator, updater *nsupdate.Updater, cfg Config, log *logrus.Entry) Backend {
	return &backend{
		db:           database,
		cache:        c,
		gw:           gw,
		fetcher:      fetcher,
		orchestrator: orchestrator,
		updater:      updater,
		cfg:          cfg,
		log:          log,
	}
}

type RegisterTenantInput struct {
	Slug               string
	Name               string
	Endpoint           string
	Identifier         string
	Secret             string
	DefaultNS1         string
	DefaultNS2         string
	InsecureSkipVerify bool
}

func (b *backend) RegisterTenant(input RegisterTenantInput) (model.TenantResponse, error) {
	if input.Slug == "" {
		return model.TenantResponse{}, fmt.Errorf("tenant slug must be provided")
	}

	token := rand.Token(tokenLength)
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return model.TenantResponse{}, err
	}

	tenant := db.Tenant{
		Slug:               input.Slug,
		Name:               input.Name,
		TokenHash:          string(hash),
		Endpoint:           input.Endpoint,
		Identifier:         input.Identifier,
		Secret:             input.Secret,
		DefaultNS1:         input.DefaultNS1,
		DefaultNS2:         input.DefaultNS2,
		InsecureSkipVerify: input.InsecureSkipVerify,
	}
	if err := b.db.CreateTenant(&tenant); err != nil {
		return model.TenantResponse{}, err
	}

	return model.TenantResponse{Slug: tenant.Slug, Token: token}, nil
}

func (b *backend) GetTenant(slug string) (db.Tenant, error) {
	return b.db.GetTenantBySlug(slug)
}

// UpdateTenantCredentials rotates a tenant's upstream credentials and drops
// every cached entry for the tenant, since keys derive from credential
// identity and stale entries would otherwise linger until natural expiry.
func (b *backend) UpdateTenantCredentials(slug, endpoint, identifier, secret string, insecureSkipVerify bool) error {
	if err := b.db.UpdateTenantCredentials(slug, endpoint, identifier, secret, insecureSkipVerify); err != nil {
		return err
	}
	b.cache.InvalidateTenant(slug)
	return nil
}

func (b *backend) Credentials(tenant db.Tenant) upstream.Credentials {
	return upstream.Credentials{
		Tenant:             tenant.Slug,
		Endpoint:           tenant.Endpoint,
		Identifier:         tenant.Identifier,
		Secret:             tenant.Secret,
		InsecureSkipVerify: tenant.InsecureSkipVerify,
	}
}

func (b *backend) StartExport(ctx context.Context, tenant db.Tenant, batchNumber, batchSize int) (*model.StartExportResponse, error) {
	return b.orchestrator.Start(ctx, b.Credentials(tenant), batchNumber, batchSize)
}

func (b *backend) ExportStep(ctx context.Context, tenant db.Tenant, batchNumber, currentIndex int) (*model.ProgressResponse, error) {
	return b.orchestrator.Step(ctx, b.Credentials(tenant), batchNumber, currentIndex)
}

func (b *backend) RunExportBatch(ctx context.Context, tenant db.Tenant, batchNumber, batchSize int) (*export.BatchSummary, error) {
	return b.orchestrator.RunBatch(ctx, b.Credentials(tenant), batchNumber, batchSize)
}

// ListExportFiles reports only the calling tenant's artifacts; the CSV
// directory itself is shared.
func (b *backend) ListExportFiles(tenant db.Tenant) (model.CSVFilesResponse, error) {
	files, err := export.ListCSVFiles(b.cfg.CSVDir, tenant.Slug)
	if err != nil {
		return model.CSVFilesResponse{}, err
	}
	return model.CSVFilesResponse{Files: files, TotalFiles: len(files)}, nil
}

// UpdateNameservers applies ns1/ns2 to the listed domains, falling back to
// the tenant's configured defaults when the caller supplies none.
func (b *backend) UpdateNameservers(ctx context.Context, tenant db.Tenant, domains []string, ns1, ns2 string) (*model.UpdateNameserversResponse, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("no domains provided")
	}
	if ns1 == "" {
		ns1 = tenant.DefaultNS1
	}
	if ns2 == "" {
		ns2 = tenant.DefaultNS2
	}
	if ns1 == "" || ns2 == "" {
		return nil, fmt.Errorf("two nameservers are required and the tenant has no defaults configured")
	}
	return b.updater.Apply(ctx, b.Credentials(tenant), domains, ns1, ns2)
}

func (b *backend) AuditEvents(tenant db.Tenant, limit int) ([]nsupdate.AuditEvent, error) {
	return b.updater.Audit().Read(tenant.Slug, limit)
}

func (b *backend) ListMirroredDomains(tenant db.Tenant, opts db.ListOptions) ([]db.DomainRecord, int64, error) {
	return b.db.ListDomains(tenant.ID, opts)
}

func (b *backend) DomainStatusCounts(tenant db.Tenant) (map[string]int64, error) {
	return b.db.CountDomainsByStatus(tenant.ID)
}

func (b *backend) LatestSync(tenant db.Tenant) (db.SyncLog, error) {
	return b.db.LatestSyncLog(tenant.ID)
}

// Inventory returns the tenant's full live domain listing straight from the
// upstream, served through the fetcher's TTL cache.
func (b *backend) Inventory(ctx context.Context, tenant db.Tenant) ([]model.Domain, error) {
	return b.fetcher.AllDomains(ctx, b.Credentials(tenant))
}

func (b *backend) Stats(ctx context.Context, tenant db.Tenant) (*upstream.Stats, error) {
	creds := b.Credentials(tenant)
	v, err := b.cache.GetOrCompute("stats:"+creds.CacheKey(), tenant.Slug, statsTTL, func() (interface{}, error) {
		return b.gw.GetStats(ctx, creds)
	})
	if err != nil {
		return nil, err
	}
	return v.(*upstream.Stats), nil
}

func (b *backend) Servers(ctx context.Context, tenant db.Tenant) (json.RawMessage, error) {
	creds := b.Credentials(tenant)
	v, err := b.cache.GetOrCompute("servers:"+creds.CacheKey(), tenant.Slug, serversTTL, func() (interface{}, error) {
		return b.gw.GetServers(ctx, creds)
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

func (b *backend) TestConnection(ctx context.Context, tenant db.Tenant) error {
	return b.gw.TestConnection(ctx, b.Credentials(tenant))
}
