package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// drainTenant runs one drain synchronously and returns its result.
func (a *API) drainTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimSpace(chi.URLParam(r, "tenantID"))
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "missing tenant")
		return
	}

	res := a.q.Drain(r.Context(), tenantID)
	writeJSON(w, http.StatusOK, res)
}
