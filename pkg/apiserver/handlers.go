package apiserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gdelfava/domaintools/pkg/backend"
	"github.com/gdelfava/domaintools/pkg/db"
	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/gdelfava/domaintools/pkg/version"
)

type handler struct {
	backend         backend.Backend
	exportBatchSize int
}

func newHandler(b backend.Backend, exportBatchSize int) *handler {
	return &handler{
		backend:         b,
		exportBatchSize: exportBatchSize,
	}
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	v := version.Get()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.WriteHeader(500)
		_, _ = w.Write([]byte(`{"success": false}`))
	}
}

type registerTenantRequest struct {
	Slug               string `json:"slug"`
	Name               string `json:"name"`
	Endpoint           string `json:"endpoint"`
	Identifier         string `json:"identifier"`
	Secret             string `json:"secret"`
	DefaultNS1         string `json:"ns1,omitempty"`
	DefaultNS2         string `json:"ns2,omitempty"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty"`
}

func (h *handler) registerTenant(w http.ResponseWriter, r *http.Request) {
	var input registerTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if input.Slug == "" || input.Endpoint == "" || input.Identifier == "" || input.Secret == "" {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("slug, endpoint, identifier and secret must be provided"))
		return
	}

	resp, err := h.backend.RegisterTenant(backend.RegisterTenantInput{
		Slug:               input.Slug,
		Name:               input.Name,
		Endpoint:           input.Endpoint,
		Identifier:         input.Identifier,
		Secret:             input.Secret,
		DefaultNS1:         input.DefaultNS1,
		DefaultNS2:         input.DefaultNS2,
		InsecureSkipVerify: input.InsecureSkipVerify,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, resp)
}

type tenantOverviewResponse struct {
	Slug         string           `json:"slug"`
	Name         string           `json:"name"`
	StatusCounts map[string]int64 `json:"statusCounts"`
	LastSync     *db.SyncLog      `json:"lastSync,omitempty"`
}

func (h *handler) tenantOverview(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	counts, err := h.backend.DomainStatusCounts(tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := tenantOverviewResponse{
		Slug:         tenant.Slug,
		Name:         tenant.Name,
		StatusCounts: counts,
	}
	if last, err := h.backend.LatestSync(tenant); err == nil && last.ID != 0 {
		resp.LastSync = &last
	}
	writeSuccess(w, resp)
}

func (h *handler) syncBatch(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	batchNumber, err := formInt(r, "batch_number", 1)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	batchSize, err := formInt(r, "batch_size", h.exportBatchSize)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	withNameservers := r.FormValue("with_nameservers") == "true"

	report, err := h.backend.SyncBatch(r.Context(), tenant, batchNumber, batchSize, withNameservers)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeSuccess(w, report)
}

type listDomainsResponse struct {
	Domains []db.DomainRecord `json:"domains"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"perPage"`
}

func (h *handler) listDomains(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	page, err := formInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	perPage, err := formInt(r, "per_page", 25)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	opts := db.ListOptions{
		Page:    page,
		PerPage: perPage,
		Status:  r.FormValue("status"),
		Search:  r.FormValue("search"),
	}

	records, total, err := h.backend.ListMirroredDomains(tenant, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, listDomainsResponse{
		Domains: records,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

func (h *handler) updateNameservers(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var input model.UpdateNameserversRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(input.Domains) == 0 {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("must supply at least one domain"))
		return
	}

	resp, err := h.backend.UpdateNameservers(r.Context(), tenant, input.Domains, input.NS1, input.NS2)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeSuccess(w, resp)
}

type auditEventsResponse struct {
	Events []auditEventView `json:"events"`
	Total  int              `json:"total"`
}

type auditEventView struct {
	Timestamp string `json:"timestamp"`
	Domain    string `json:"domain"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Display   string `json:"display"`
}

func (h *handler) auditEvents(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	limit, err := formInt(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	events, err := h.backend.AuditEvents(tenant, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := auditEventsResponse{Total: len(events)}
	for _, ev := range events {
		resp.Events = append(resp.Events, auditEventView{
			Timestamp: ev.Timestamp.Format("2006-01-02 15:04:05"),
			Domain:    ev.Domain,
			Status:    ev.Status,
			Message:   ev.Message,
			Display:   ev.LegacyLine(),
		})
	}
	writeSuccess(w, resp)
}

type inventoryResponse struct {
	Domains []model.Domain `json:"domains"`
	Total   int            `json:"total"`
}

// inventory is the live upstream listing, as opposed to /domains which reads
// the local mirror.
func (h *handler) inventory(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	domains, err := h.backend.Inventory(r.Context(), tenant)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeSuccess(w, inventoryResponse{Domains: domains, Total: len(domains)})
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	stats, err := h.backend.Stats(r.Context(), tenant)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeSuccess(w, stats)
}

func (h *handler) servers(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	servers, err := h.backend.Servers(r.Context(), tenant)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(servers)
}

type updateCredentialsRequest struct {
	Endpoint           string `json:"endpoint"`
	Identifier         string `json:"identifier"`
	Secret             string `json:"secret"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty"`
}

func (h *handler) updateCredentials(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	var input updateCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if input.Endpoint == "" || input.Identifier == "" || input.Secret == "" {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("endpoint, identifier and secret must be provided"))
		return
	}

	if err := h.backend.UpdateTenantCredentials(tenant.Slug, input.Endpoint, input.Identifier, input.Secret, input.InsecureSkipVerify); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, map[string]bool{"updated": true})
}

func (h *handler) testConnection(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	if err := h.backend.TestConnection(r.Context(), tenant); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeSuccess(w, map[string]bool{"connected": true})
}

func formInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
