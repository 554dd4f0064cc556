package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gdelfava/domaintools/pkg/backend"
	"github.com/gdelfava/domaintools/pkg/db"
	"github.com/gdelfava/domaintools/pkg/export"
	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/gdelfava/domaintools/pkg/nsupdate"
	"github.com/gdelfava/domaintools/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	startResp    *model.StartExportResponse
	stepResp     *model.ProgressResponse
	filesResp    model.CSVFilesResponse
	runResp      *export.BatchSummary
	nsResp       *model.UpdateNameserversResponse
	syncResp     *model.SyncReport
	err          error
	lastBatch    int
	lastSize     int
	lastIndex    int
	lastDomains  []string
	lastNS1      string
	lastNS2      string
	lastWithNS   bool
	lastTenant   string
	registered   backend.RegisterTenantInput
	registerResp model.TenantResponse
}

func (f *fakeBackend) RegisterTenant(input backend.RegisterTenantInput) (model.TenantResponse, error) {
	f.registered = input
	return f.registerResp, f.err
}

func (f *fakeBackend) GetTenant(slug string) (db.Tenant, error) {
	return db.Tenant{Slug: slug}, f.err
}

func (f *fakeBackend) UpdateTenantCredentials(slug, endpoint, identifier, secret string, insecureSkipVerify bool) error {
	return f.err
}

func (f *fakeBackend) Credentials(tenant db.Tenant) upstream.Credentials {
	return upstream.Credentials{Tenant: tenant.Slug}
}

func (f *fakeBackend) StartExport(ctx context.Context, tenant db.Tenant, batchNumber, batchSize int) (*model.StartExportResponse, error) {
	f.lastBatch, f.lastSize = batchNumber, batchSize
	return f.startResp, f.err
}

func (f *fakeBackend) ExportStep(ctx context.Context, tenant db.Tenant, batchNumber, currentIndex int) (*model.ProgressResponse, error) {
	f.lastBatch, f.lastIndex = batchNumber, currentIndex
	return f.stepResp, f.err
}

func (f *fakeBackend) RunExportBatch(ctx context.Context, tenant db.Tenant, batchNumber, batchSize int) (*export.BatchSummary, error) {
	f.lastBatch, f.lastSize = batchNumber, batchSize
	return f.runResp, f.err
}

func (f *fakeBackend) ListExportFiles(tenant db.Tenant) (model.CSVFilesResponse, error) {
	f.lastTenant = tenant.Slug
	return f.filesResp, f.err
}

func (f *fakeBackend) UpdateNameservers(ctx context.Context, tenant db.Tenant, domains []string, ns1, ns2 string) (*model.UpdateNameserversResponse, error) {
	f.lastDomains, f.lastNS1, f.lastNS2 = domains, ns1, ns2
	return f.nsResp, f.err
}

func (f *fakeBackend) AuditEvents(tenant db.Tenant, limit int) ([]nsupdate.AuditEvent, error) {
	return nil, f.err
}

func (f *fakeBackend) SyncBatch(ctx context.Context, tenant db.Tenant, batchNumber, batchSize int, withNameservers bool) (*model.SyncReport, error) {
	f.lastBatch, f.lastSize, f.lastWithNS = batchNumber, batchSize, withNameservers
	return f.syncResp, f.err
}

func (f *fakeBackend) ListMirroredDomains(tenant db.Tenant, opts db.ListOptions) ([]db.DomainRecord, int64, error) {
	return nil, 0, f.err
}

func (f *fakeBackend) DomainStatusCounts(tenant db.Tenant) (map[string]int64, error) {
	return map[string]int64{"Active": 2}, f.err
}

func (f *fakeBackend) LatestSync(tenant db.Tenant) (db.SyncLog, error) {
	return db.SyncLog{}, f.err
}

func (f *fakeBackend) Inventory(ctx context.Context, tenant db.Tenant) ([]model.Domain, error) {
	return []model.Domain{{ExternalID: "1", Name: "alpha.com"}}, f.err
}

func (f *fakeBackend) Stats(ctx context.Context, tenant db.Tenant) (*upstream.Stats, error) {
	return &upstream.Stats{}, f.err
}

func (f *fakeBackend) Servers(ctx context.Context, tenant db.Tenant) (json.RawMessage, error) {
	return json.RawMessage(`{"servers":[]}`), f.err
}

func (f *fakeBackend) TestConnection(ctx context.Context, tenant db.Tenant) error {
	return f.err
}

func (f *fakeBackend) StartRetentionDaemon(stopCh <-chan struct{}) {}

func formRequest(t *testing.T, target string, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ctx := context.WithValue(req.Context(), TenantKey, db.Tenant{Slug: "acme"})
	return req.WithContext(ctx)
}

func TestExportActionStartExport(t *testing.T) {
	fake := &fakeBackend{
		startResp: &model.StartExportResponse{
			Status:       model.JobStatusReady,
			JobID:        "job-1",
			BatchNumber:  2,
			TotalDomains: 30,
		},
	}
	h := newHandler(fake, 50)

	rec := httptest.NewRecorder()
	h.exportAction(rec, formRequest(t, "/v1/tenants/acme/export", url.Values{
		"action":       {"start_export"},
		"batch_number": {"2"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, fake.lastBatch)
	assert.Equal(t, 50, fake.lastSize)

	var got model.StartExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.JobStatusReady, got.Status)
	assert.Equal(t, 30, got.TotalDomains)
}

func TestExportActionProgress(t *testing.T) {
	fake := &fakeBackend{
		stepResp: &model.ProgressResponse{
			Status:       model.JobStatusProcessing,
			BatchNumber:  1,
			CurrentIndex: 4,
			TotalDomains: 10,
			Percent:      40.0,
			DomainName:   "example.com",
		},
	}
	h := newHandler(fake, 50)

	rec := httptest.NewRecorder()
	h.exportAction(rec, formRequest(t, "/v1/tenants/acme/export", url.Values{
		"action":         {"progress"},
		"batch_number":   {"1"},
		"current_domain": {"3"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fake.lastBatch)
	assert.Equal(t, 3, fake.lastIndex)

	var got model.ProgressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "example.com", got.DomainName)
	assert.Equal(t, 40.0, got.Percent)
}

func TestExportActionGetCSVFiles(t *testing.T) {
	fake := &fakeBackend{
		filesResp: model.CSVFilesResponse{
			Files:      []model.CSVFileInfo{{Filename: "domain_export_acme_batch1_20260829_120000.csv", Size: 512}},
			TotalFiles: 1,
		},
	}
	h := newHandler(fake, 50)

	rec := httptest.NewRecorder()
	h.exportAction(rec, formRequest(t, "/v1/tenants/acme/export", url.Values{
		"action": {"get_csv_files"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.CSVFilesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Files, 1)
	assert.Equal(t, 1, got.TotalFiles)
	assert.Equal(t, "acme", fake.lastTenant, "listing is scoped to the caller")
}

func TestExportActionRejectsUnknownAction(t *testing.T) {
	h := newHandler(&fakeBackend{}, 50)

	rec := httptest.NewRecorder()
	h.exportAction(rec, formRequest(t, "/v1/tenants/acme/export", url.Values{
		"action": {"restart"},
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExportActionRequiresBatchNumber(t *testing.T) {
	h := newHandler(&fakeBackend{}, 50)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		rec := httptest.NewRecorder()
		h.exportAction(rec, formRequest(t, "/v1/tenants/acme/export", url.Values{
			"action":       {"start_export"},
			"batch_number": {bad},
		}))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "batch_number=%q", bad)
	}
}

func TestRunExportBatch(t *testing.T) {
	fake := &fakeBackend{
		runResp: &export.BatchSummary{BatchNumber: 3, Processed: 10, Successful: 9, Errors: 1},
	}
	h := newHandler(fake, 25)

	rec := httptest.NewRecorder()
	h.runExportBatch(rec, formRequest(t, "/v1/tenants/acme/export/run", url.Values{
		"batch_number": {"3"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, fake.lastBatch)
	assert.Equal(t, 25, fake.lastSize)
}

func TestSyncBatchDefaultsAndFlags(t *testing.T) {
	fake := &fakeBackend{
		syncResp: &model.SyncReport{BatchNumber: 1, DomainsFound: 5, Status: "completed"},
	}
	h := newHandler(fake, 50)

	rec := httptest.NewRecorder()
	h.syncBatch(rec, formRequest(t, "/v1/tenants/acme/sync", url.Values{
		"with_nameservers": {"true"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fake.lastBatch)
	assert.Equal(t, 50, fake.lastSize)
	assert.True(t, fake.lastWithNS)
}

func TestUpdateNameserversRequiresDomains(t *testing.T) {
	h := newHandler(&fakeBackend{}, 50)

	body := `{"domains":[],"ns1":"ns1.example.net","ns2":"ns2.example.net"}`
	req := httptest.NewRequest("POST", "/v1/tenants/acme/nameservers", strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), TenantKey, db.Tenant{Slug: "acme"}))

	rec := httptest.NewRecorder()
	h.updateNameservers(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateNameservers(t *testing.T) {
	fake := &fakeBackend{
		nsResp: &model.UpdateNameserversResponse{
			Results:      []model.UpdateResult{{Domain: "example.com", Success: true}},
			SuccessCount: 1,
		},
	}
	h := newHandler(fake, 50)

	body := `{"domains":["example.com"],"ns1":"ns1.example.net","ns2":"ns2.example.net"}`
	req := httptest.NewRequest("POST", "/v1/tenants/acme/nameservers", strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), TenantKey, db.Tenant{Slug: "acme"}))

	rec := httptest.NewRecorder()
	h.updateNameservers(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"example.com"}, fake.lastDomains)
	assert.Equal(t, "ns1.example.net", fake.lastNS1)

	var got model.UpdateNameserversResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.SuccessCount)
}

func TestRegisterTenantValidation(t *testing.T) {
	h := newHandler(&fakeBackend{}, 50)

	body := `{"slug":"acme"}`
	req := httptest.NewRequest("POST", "/v1/tenants", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.registerTenant(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRegisterTenant(t *testing.T) {
	fake := &fakeBackend{
		registerResp: model.TenantResponse{Slug: "acme", Token: "secret-token"},
	}
	h := newHandler(fake, 50)

	body := `{"slug":"acme","name":"Acme","endpoint":"https://billing.example.com/includes/api.php","identifier":"id","secret":"sec"}`
	req := httptest.NewRequest("POST", "/v1/tenants", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.registerTenant(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", fake.registered.Slug)

	var got model.TenantResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "secret-token", got.Token)
}
