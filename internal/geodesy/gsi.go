package geodesy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/UnknownOlympus/geodist/internal/models"
)

// GSIBaseURL -- GSI surveying calculation API (distance and azimuth between two points).
const GSIBaseURL = "http://vldb.gsi.go.jp/sokuchi/surveycalc/surveycalc/bl2st_calc.pl"

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 10 * time.Second

// GSIProvider implements the Provider interface using the GSI bl2st_calc API.
// The API is only reachable over plain HTTP, which is why browsers need it proxied.
type GSIProvider struct {
	client  HTTPClient   // HTTP client for making requests
	baseURL string       // Base URL for the GSI API
	log     *slog.Logger // Logger for logging operations
}

// NewGSIProvider creates a new GSI distance provider with a bounded HTTP client.
func NewGSIProvider(baseURL string, timeout time.Duration, log *slog.Logger) *GSIProvider {
	return &GSIProvider{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		log:     log,
	}
}

// NewGSIProviderWithClient allows injecting custom HTTP client.
func NewGSIProviderWithClient(client HTTPClient, baseURL string, log *slog.Logger) *GSIProvider {
	return &GSIProvider{
		client:  client,
		baseURL: baseURL,
		log:     log,
	}
}

// Distance forwards the query to the GSI API and returns its JSON body verbatim.
//
// The returned error wraps one of ErrMissingParameters, ErrUpstreamRequest or
// ErrUpstreamResponse; anything else is an unexpected failure.
func (gp *GSIProvider) Distance(ctx context.Context, query models.DistanceQuery) (json.RawMessage, error) {
	if !query.Complete() {
		return nil, ErrMissingParameters
	}

	reqURL, err := url.Parse(gp.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	params := reqURL.Query()
	params.Set("outputType", "json")
	params.Set("ellipsoid", "bessel")
	params.Set("latitude1", query.Latitude1)
	params.Set("longitude1", query.Longitude1)
	params.Set("latitude2", query.Latitude2)
	params.Set("longitude2", query.Longitude2)
	reqURL.RawQuery = params.Encode()

	gp.log.DebugContext(ctx, "GSI request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := gp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrUpstreamRequest, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		gp.log.ErrorContext(ctx, "GSI API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: upstream returned status %d", ErrUpstreamRequest, resp.StatusCode)
	}

	gp.log.DebugContext(ctx, "GSI raw response", "body", string(body))

	var payload json.RawMessage
	if err = json.Unmarshal(body, &payload); err != nil {
		gp.log.ErrorContext(ctx, "Failed to parse GSI response", "error", err, "body", string(body))
		return nil, fmt.Errorf("%w: %w", ErrUpstreamResponse, err)
	}

	return payload, nil
}
