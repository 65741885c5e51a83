package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/sanitize"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: sanitize.Message(msg)})
}

// writeStoreError maps store errors to a status code and logs server-side
// failures.
func (a *API) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, drainq.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	a.logger.Error("api request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", sanitize.Error(err)),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}
