package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/UnknownOlympus/geodist/internal/geodesy"
	"github.com/UnknownOlympus/geodist/internal/metrics"
)

// errorResponse is the JSON body of every failed proxy request.
type errorResponse struct {
	Error string `json:"error"`
}

// writeProviderError is the only place provider errors become HTTP responses.
func (s *Server) writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var (
		status  int
		message string
	)

	switch {
	case errors.Is(err, geodesy.ErrMissingParameters):
		status, message = http.StatusBadRequest, "Missing required parameters"
		s.log.DebugContext(ctx, "Rejected distance request", "query", r.URL.RawQuery)
	case errors.Is(err, geodesy.ErrUpstreamRequest):
		// The sentinel text already reads "API request failed".
		status, message = http.StatusInternalServerError, err.Error()
		s.metrics.UpstreamErrors.WithLabelValues(metrics.UpstreamErrorRequest).Inc()
		s.log.ErrorContext(ctx, "Distance API request failed", "error", err)
	case errors.Is(err, geodesy.ErrUpstreamResponse):
		status, message = http.StatusInternalServerError, "Server error: "+err.Error()
		s.metrics.UpstreamErrors.WithLabelValues(metrics.UpstreamErrorResponse).Inc()
		s.log.ErrorContext(ctx, "Distance API returned an unusable body", "error", err)
	default:
		status, message = http.StatusInternalServerError, "Server error: "+err.Error()
		s.metrics.UpstreamErrors.WithLabelValues(metrics.UpstreamErrorInternal).Inc()
		s.log.ErrorContext(ctx, "Unexpected error while proxying", "error", err)
	}

	body, err := json.Marshal(errorResponse{Error: message})
	if err != nil {
		s.log.ErrorContext(ctx, "failed to encode error reply", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	s.metrics.ProxyRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	s.writeJSON(w, r, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.log.ErrorContext(r.Context(), "failed to write reply", "error", err)
	}
}
