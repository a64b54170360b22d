// OMDb API implementation of [MetadataProvider]
//
// Response fields based on https://www.omdbapi.com/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
)

const (
	omdbBaseURL      = "https://www.omdbapi.com"
	omdbNotFoundText = "Movie not found!"
)

// OMDbMovie represents a title response from OMDb.
//
// OMDb reports missing values as "N/A" and failures with Response "False" and an Error message.
type OMDbMovie struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Director   string `json:"Director"`
	Genre      string `json:"Genre"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
	IMDbRating string `json:"imdbRating"`
	IMDbID     string `json:"imdbID"`
	Type       string `json:"Type"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
}

// OMDbService implements [MetadataProvider] for the OMDb API, keyed by an API key.
type OMDbService struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewOMDbService creates an OMDb provider. A nil client gets one bounded by timeout.
func NewOMDbService(config shared.OMDbConfig, timeout time.Duration, client *http.Client) (*OMDbService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: omdb api_key", shared.ErrMissingCredentials)
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = omdbBaseURL
	}

	timeout = timeoutOrDefault(timeout)
	return &OMDbService{
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: clientWithTimeout(client, timeout),
	}, nil
}

func (o *OMDbService) Name() string {
	return "omdb"
}

// Lookup fetches a movie by exact title, using year to disambiguate remakes.
func (o *OMDbService) Lookup(ctx context.Context, title, year string) (result *models.ProviderResult, err error) {
	started := time.Now()
	defer func() { observe(o.Name(), started, err) }()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("apikey", o.apiKey)
	q.Set("t", strings.TrimSpace(title))
	q.Set("type", "movie")
	q.Set("plot", "full")
	if year = strings.TrimSpace(year); year != "" {
		q.Set("y", year)
	}

	var movie OMDbMovie
	if _, err := doRequest(ctx, o.httpClient, o.baseURL+"/?"+q.Encode(), nil, &movie); err != nil {
		return nil, fmt.Errorf("omdb lookup %q: %w", title, err)
	}

	if strings.EqualFold(movie.Response, "False") {
		if movie.Error == omdbNotFoundText {
			return nil, fmt.Errorf("omdb lookup %q: %w", title, shared.ErrNoMatch)
		}
		return nil, fmt.Errorf("omdb lookup %q: %w: %s", title, shared.ErrProviderUnavailable, movie.Error)
	}

	return movie.toResult(o.Name()), nil
}

func (m OMDbMovie) toResult(provider string) *models.ProviderResult {
	return &models.ProviderResult{
		Provider:   provider,
		ExternalID: notAvailable(m.IMDbID),
		Title:      notAvailable(m.Title),
		Year:       notAvailable(m.Year),
		Director:   notAvailable(m.Director),
		Genre:      notAvailable(m.Genre),
		Plot:       notAvailable(m.Plot),
		PosterURL:  notAvailable(m.Poster),
		Rating:     notAvailable(m.IMDbRating),
	}
}
