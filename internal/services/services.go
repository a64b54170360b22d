package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/movieweb/internal/metrics"
	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
)

// DefaultTimeout bounds a single provider lookup when none is configured.
const DefaultTimeout = 8 * time.Second

// MetadataProvider defines the interface for movie metadata services.
type MetadataProvider interface {
	// Lookup resolves a title, optionally disambiguated by year, into a flat [models.ProviderResult].
	//
	// Errors wrap [shared.ErrProviderUnavailable] when the provider could not answer and
	// [shared.ErrNoMatch] when it answered without a match.
	Lookup(ctx context.Context, title, year string) (*models.ProviderResult, error)

	// Name returns the name of the provider (e.g., "omdb", "tmdb")
	Name() string
}

// NewProvider builds the [MetadataProvider] selected by config.
//
// client may be nil, in which case each provider builds its own with the configured timeout.
func NewProvider(config *shared.Config, client *http.Client) (MetadataProvider, error) {
	timeout := config.Provider.Timeout.Duration
	switch config.Provider.Name {
	case "omdb", "":
		return NewOMDbService(config.Credentials.OMDb, timeout, client)
	case "tmdb":
		return NewTMDBService(config.Credentials.TMDB, timeout, client)
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownProvider, config.Provider.Name)
	}
}

// notAvailable maps the placeholder providers use for missing values to an empty string.
func notAvailable(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "N/A") {
		return ""
	}
	return s
}

// doRequest performs a GET request and decodes a JSON body into result.
//
// Transport failures, timeouts, non-2xx responses, and undecodable bodies all wrap [shared.ErrProviderUnavailable].
// The status code is returned so callers can treat specific statuses differently.
func doRequest(ctx context.Context, client *http.Client, apiURL string, header http.Header, result any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create request: %v", shared.ErrProviderUnavailable, err)
	}

	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: request failed: %v", shared.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w: status %d", shared.ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: failed to decode response: %v", shared.ErrProviderUnavailable, err)
	}

	return resp.StatusCode, nil
}

// observe records a finished lookup against the provider metrics.
func observe(provider string, started time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, shared.ErrNoMatch):
		outcome = metrics.OutcomeNoMatch
	case err != nil:
		outcome = metrics.OutcomeUnavailable
	}
	metrics.ObserveLookup(provider, outcome, started)
}

func clientWithTimeout(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: timeout}
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
