package api

import (
	"net/http"
	"strconv"

	"github.com/xraph/drainq/job"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

// DeadLettersResponse lists failed jobs, newest first.
type DeadLettersResponse struct {
	Items []*job.Job `json:"items"`
}

func (a *API) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := defaultDeadLetterLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDeadLetterLimit)
	}

	jobs, err := a.q.DeadLetters(r.Context(), limit)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	writeJSON(w, http.StatusOK, DeadLettersResponse{Items: jobs})
}
