package geodesy

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// ProviderConfig holds configuration for creating a distance provider.
type ProviderConfig struct {
	BaseURL string        // Upstream endpoint, GSIBaseURL when empty
	Timeout time.Duration // Upper bound for a single upstream call
	Logger  *slog.Logger  // Logger for the provider
}

// NewProvider creates a distance provider based on the provided configuration.
//
// Returns an error if the upstream URL is not an absolute http(s) URL.
func NewProvider(config ProviderConfig) (Provider, error) {
	if config.Logger == nil {
		return nil, errors.New("logger is required for distance provider")
	}

	if config.BaseURL == "" {
		config.BaseURL = GSIBaseURL
	}

	upstream, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if (upstream.Scheme != "http" && upstream.Scheme != "https") || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL: %s", config.BaseURL)
	}

	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
		config.Logger.Warn("Upstream timeout not set, set a default value", "value", config.Timeout)
	}

	return NewGSIProvider(config.BaseURL, config.Timeout, config.Logger), nil
}
