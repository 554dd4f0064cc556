package apiserver

import (
	"fmt"
	"net/http"
)

// exportAction implements the polling protocol used by the export UI. The
// client POSTs form-encoded requests distinguished by an action field:
// start_export seeds a job, progress advances it one domain, and
// get_csv_files lists the produced files.
func (h *handler) exportAction(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	switch action := r.FormValue("action"); action {
	case "start_export":
		batchNumber, err := formInt(r, "batch_number", 0)
		if err != nil || batchNumber < 1 {
			writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("batch_number must be a positive integer"))
			return
		}
		batchSize, err := formInt(r, "batch_size", h.exportBatchSize)
		if err != nil || batchSize < 1 {
			writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("batch_size must be a positive integer"))
			return
		}

		resp, err := h.backend.StartExport(r.Context(), tenant, batchNumber, batchSize)
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeSuccess(w, resp)

	case "progress":
		batchNumber, err := formInt(r, "batch_number", 0)
		if err != nil || batchNumber < 1 {
			writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("batch_number must be a positive integer"))
			return
		}
		currentIndex, err := formInt(r, "current_domain", -1)
		if err != nil || currentIndex < 0 {
			writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("current_domain must be a non-negative integer"))
			return
		}

		resp, err := h.backend.ExportStep(r.Context(), tenant, batchNumber, currentIndex)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeSuccess(w, resp)

	case "get_csv_files":
		resp, err := h.backend.ListExportFiles(tenant)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeSuccess(w, resp)

	default:
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("unknown action %q", action))
	}
}

// runExportBatch processes a whole batch in a single request, for callers
// that do not need incremental progress.
func (h *handler) runExportBatch(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())

	batchNumber, err := formInt(r, "batch_number", 0)
	if err != nil || batchNumber < 1 {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("batch_number must be a positive integer"))
		return
	}
	batchSize, err := formInt(r, "batch_size", h.exportBatchSize)
	if err != nil || batchSize < 1 {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("batch_size must be a positive integer"))
		return
	}

	summary, err := h.backend.RunExportBatch(r.Context(), tenant, batchNumber, batchSize)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeSuccess(w, summary)
}
