package geodesy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/UnknownOlympus/geodist/internal/models"
)

// Provider is an interface that defines a method for calculating the distance between two points.
// The Distance method returns the upstream JSON payload unchanged.
type Provider interface {
	Distance(ctx context.Context, query models.DistanceQuery) (json.RawMessage, error)
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Error kinds returned by providers. Callers translate them with errors.Is.
var (
	// ErrMissingParameters is returned when the query lacks one of the four coordinates.
	ErrMissingParameters = errors.New("missing required parameters")
	// ErrUpstreamRequest covers network failures, timeouts and non-2xx upstream statuses.
	ErrUpstreamRequest = errors.New("API request failed")
	// ErrUpstreamResponse is returned when the upstream body is not valid JSON.
	ErrUpstreamResponse = errors.New("invalid upstream response")
)
