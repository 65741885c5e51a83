package api

import (
	"net/http"
)

// StatsResponse reports queue depth.
type StatsResponse struct {
	QueueSize int64 `json:"queue_size"`
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	size, err := a.q.QueueSize(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{QueueSize: size})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if err := a.q.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
