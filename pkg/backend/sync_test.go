package backend

import (
	"context"
	"testing"

	"github.com/gdelfava/domaintools/pkg/cache"
	"github.com/gdelfava/domaintools/pkg/db"
	"github.com/gdelfava/domaintools/pkg/export"
	"github.com/gdelfava/domaintools/pkg/inventory"
	"github.com/gdelfava/domaintools/pkg/jobs"
	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/gdelfava/domaintools/pkg/nsupdate"
	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	upstream.Gateway

	domainsFn     func(limitNum, limitStart int, clientID string) (model.PageResult, error)
	nameserversFn func(domainID string) (*model.NameserverSet, error)
	statsFn       func() (*upstream.Stats, error)

	statsCalls int
}

func (f *fakeGateway) GetClientsDomains(_ context.Context, _ upstream.Credentials, limitNum, limitStart int, clientID string) (model.PageResult, error) {
	return f.domainsFn(limitNum, limitStart, clientID)
}

func (f *fakeGateway) GetNameservers(_ context.Context, _ upstream.Credentials, domainID string) (*model.NameserverSet, error) {
	return f.nameserversFn(domainID)
}

func (f *fakeGateway) GetStats(_ context.Context, _ upstream.Credentials) (*upstream.Stats, error) {
	f.statsCalls++
	return f.statsFn()
}

func newTestBackend(t *testing.T, gw upstream.Gateway) (Backend, db.Database) {
	t.Helper()

	database, err := db.New(context.Background(), "sqlite", ":memory:", nil)
	require.NoError(t, err)

	log := logrus.WithField("test", true)
	c := cache.New()
	fetcher := inventory.NewFetcher(gw, c, log)
	dir := t.TempDir()
	orchestrator := export.NewOrchestrator(fetcher, gw, jobs.NewMemoryStore(), dir, log)
	updater := nsupdate.NewUpdater(gw, nsupdate.NewAuditLog(t.TempDir()), log)

	b := New(database, c, gw, fetcher, orchestrator, updater, Config{CSVDir: dir}, log)
	return b, database
}

func registerTenant(t *testing.T, b Backend) db.Tenant {
	t.Helper()
	resp, err := b.RegisterTenant(RegisterTenantInput{
		Slug:       "tenant-a",
		Name:       "Tenant A",
		Endpoint:   "https://whmcs.example/includes/api.php",
		Identifier: "ident",
		Secret:     "shh",
		DefaultNS1: "ns1.default.net",
		DefaultNS2: "ns2.default.net",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	tenant, err := b.GetTenant("tenant-a")
	require.NoError(t, err)
	return tenant
}

func TestSyncBatchAddsThenUpdates(t *testing.T) {
	page := model.PageResult{
		Domains: []model.Domain{
			{ExternalID: "1", Name: "alpha.com", Status: model.StatusActive},
			{ExternalID: "2", Name: "bravo.com", Status: model.StatusActive},
		},
		Limit: 200,
	}
	gw := &fakeGateway{
		domainsFn: func(limitNum, limitStart int, _ string) (model.PageResult, error) {
			return page, nil
		},
	}
	b, database := newTestBackend(t, gw)
	tenant := registerTenant(t, b)
	ctx := context.Background()

	report, err := b.SyncBatch(ctx, tenant, 1, 200, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.DomainsFound)
	assert.Equal(t, 2, report.DomainsAdded)
	assert.Zero(t, report.DomainsUpdated)
	assert.Zero(t, report.Errors)
	assert.True(t, report.LastBatch)

	page.Domains[1].Status = model.StatusExpired
	report, err = b.SyncBatch(ctx, tenant, 1, 200, false)
	require.NoError(t, err)
	assert.Zero(t, report.DomainsAdded)
	assert.Equal(t, 2, report.DomainsUpdated)

	latest, err := database.LatestSyncLog(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SyncStatusCompleted, latest.Status)
	assert.Equal(t, 2, latest.DomainsProcessed)
	require.NotNil(t, latest.CompletedAt)
}

func TestSyncBatchWithNameservers(t *testing.T) {
	gw := &fakeGateway{
		domainsFn: func(limitNum, limitStart int, _ string) (model.PageResult, error) {
			return model.PageResult{
				Domains: []model.Domain{
					{ExternalID: "1", Name: "alpha.com", Status: model.StatusActive},
					{ExternalID: "", Name: "orphan.com", Status: model.StatusActive},
				},
				Limit: limitNum,
			}, nil
		},
		nameserversFn: func(domainID string) (*model.NameserverSet, error) {
			return &model.NameserverSet{DomainExternalID: domainID, NS1: "ns1.x", NS2: "ns2.x"}, nil
		},
	}
	b, database := newTestBackend(t, gw)
	tenant := registerTenant(t, b)

	report, err := b.SyncBatch(context.Background(), tenant, 1, 200, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DomainsAdded)
	assert.Equal(t, 1, report.Errors, "the record without an id is counted, not fatal")

	records, _, err := database.ListDomains(tenant.ID, db.ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ns1.x", records[0].NS1)
}

func TestSyncBatchPageFailureClosesLogFailed(t *testing.T) {
	gw := &fakeGateway{
		domainsFn: func(int, int, string) (model.PageResult, error) {
			return model.PageResult{}, &upstream.Error{Action: upstream.ActionGetClientsDomains, Message: "boom"}
		},
	}
	b, database := newTestBackend(t, gw)
	tenant := registerTenant(t, b)

	report, err := b.SyncBatch(context.Background(), tenant, 1, 200, false)
	require.Error(t, err)
	assert.Equal(t, db.SyncStatusFailed, report.Status)

	latest, err := database.LatestSyncLog(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SyncStatusFailed, latest.Status)
	assert.Contains(t, latest.ErrorMessage, "boom")
}

func TestStatsCachedAndInvalidatedOnCredentialChange(t *testing.T) {
	gw := &fakeGateway{
		statsFn: func() (*upstream.Stats, error) {
			return &upstream.Stats{Result: "success"}, nil
		},
	}
	b, _ := newTestBackend(t, gw)
	tenant := registerTenant(t, b)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Stats(ctx, tenant)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, gw.statsCalls)

	require.NoError(t, b.UpdateTenantCredentials("tenant-a", "https://other.example/api.php", "ident2", "shh2", false))
	tenant, err := b.GetTenant("tenant-a")
	require.NoError(t, err)

	_, err = b.Stats(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.statsCalls, "credential rotation must drop cached upstream reads")
}

func TestUpdateNameserversFallsBackToTenantDefaults(t *testing.T) {
	var gotNS1, gotNS2 string
	gw := &updateCapturingGateway{fakeGateway: &fakeGateway{}, ns1: &gotNS1, ns2: &gotNS2}
	b, _ := newTestBackend(t, gw)
	tenant := registerTenant(t, b)

	_, err := b.UpdateNameservers(context.Background(), tenant, []string{"alpha.com"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "ns1.default.net", gotNS1)
	assert.Equal(t, "ns2.default.net", gotNS2)

	_, err = b.UpdateNameservers(context.Background(), tenant, nil, "", "")
	assert.Error(t, err)
}

type updateCapturingGateway struct {
	*fakeGateway
	ns1, ns2 *string
}

func (g *updateCapturingGateway) UpdateNameservers(_ context.Context, _ upstream.Credentials, domain, ns1, ns2 string) (string, error) {
	*g.ns1 = ns1
	*g.ns2 = ns2
	return "ok", nil
}
