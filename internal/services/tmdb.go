// TMDB API implementation of [MetadataProvider]
//
// TMDB API response types based on https://developer.themoviedb.org/reference
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
	"golang.org/x/oauth2"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p/w500"
	tmdbIDPrefix     = "tmdb:"
)

// TMDBSearchResult represents one hit from /search/movie.
type TMDBSearchResult struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
}

// TMDBSearchResponse represents a page of /search/movie results.
type TMDBSearchResponse struct {
	Page         int                `json:"page"`
	Results      []TMDBSearchResult `json:"results"`
	TotalResults int                `json:"total_results"`
}

// TMDBGenre represents a genre attached to a movie.
type TMDBGenre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TMDBCrewMember represents a crew credit.
type TMDBCrewMember struct {
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

type tmdbCredits struct {
	Crew []TMDBCrewMember `json:"crew"`
}

// TMDBMovie represents /movie/{id} with credits appended.
type TMDBMovie struct {
	ID          int         `json:"id"`
	IMDbID      string      `json:"imdb_id"`
	Title       string      `json:"title"`
	ReleaseDate string      `json:"release_date"`
	Overview    string      `json:"overview"`
	PosterPath  string      `json:"poster_path"`
	VoteAverage float64     `json:"vote_average"`
	VoteCount   int         `json:"vote_count"`
	Genres      []TMDBGenre `json:"genres"`
	Credits     tmdbCredits `json:"credits"`
}

// TMDBService implements [MetadataProvider] for the TMDB v3 API.
//
// Requests carry the read access token as a bearer token through an [oauth2] transport.
type TMDBService struct {
	baseURL      string
	imageBaseURL string
	language     string
	timeout      time.Duration
	httpClient   *http.Client
}

// NewTMDBService creates a TMDB provider.
//
// The bearer transport wraps base's transport, so tests can point base at an httptest server.
func NewTMDBService(config shared.TMDBConfig, timeout time.Duration, base *http.Client) (*TMDBService, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("%w: tmdb token", shared.ErrMissingCredentials)
	}

	timeout = timeoutOrDefault(timeout)

	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = timeout

	s := &TMDBService{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(config.ImageBaseURL, "/"),
		language:     config.Language,
		timeout:      timeout,
		httpClient:   client,
	}
	if s.baseURL == "" {
		s.baseURL = tmdbBaseURL
	}
	if s.imageBaseURL == "" {
		s.imageBaseURL = tmdbImageBaseURL
	}
	return s, nil
}

func (s *TMDBService) Name() string {
	return "tmdb"
}

// Lookup searches for title and fetches details and credits for the best hit.
func (s *TMDBService) Lookup(ctx context.Context, title, year string) (result *models.ProviderResult, err error) {
	started := time.Now()
	defer func() { observe(s.Name(), started, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	hit, err := s.search(ctx, title, year)
	if err != nil {
		return nil, fmt.Errorf("tmdb lookup %q: %w", title, err)
	}

	movie, err := s.Movie(ctx, hit.ID)
	if err != nil {
		return nil, fmt.Errorf("tmdb lookup %q: %w", title, err)
	}

	return s.toResult(movie), nil
}

func (s *TMDBService) search(ctx context.Context, title, year string) (*TMDBSearchResult, error) {
	q := url.Values{}
	q.Set("query", strings.TrimSpace(title))
	q.Set("include_adult", "false")
	if s.language != "" {
		q.Set("language", s.language)
	}
	if year = strings.TrimSpace(year); year != "" {
		q.Set("year", year)
	}

	var response TMDBSearchResponse
	if _, err := doRequest(ctx, s.httpClient, s.baseURL+"/search/movie?"+q.Encode(), nil, &response); err != nil {
		return nil, err
	}

	if len(response.Results) == 0 {
		return nil, shared.ErrNoMatch
	}
	return &response.Results[0], nil
}

// Movie retrieves a movie by TMDB ID with its credits.
func (s *TMDBService) Movie(ctx context.Context, id int) (*TMDBMovie, error) {
	q := url.Values{}
	q.Set("append_to_response", "credits")
	if s.language != "" {
		q.Set("language", s.language)
	}

	endpoint := fmt.Sprintf("%s/movie/%d?%s", s.baseURL, id, q.Encode())

	var movie TMDBMovie
	status, err := doRequest(ctx, s.httpClient, endpoint, nil, &movie)
	if status == http.StatusNotFound {
		return nil, shared.ErrNoMatch
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

func (s *TMDBService) toResult(m *TMDBMovie) *models.ProviderResult {
	result := &models.ProviderResult{
		Provider:   s.Name(),
		ExternalID: strings.TrimSpace(m.IMDbID),
		Title:      strings.TrimSpace(m.Title),
		Year:       strings.TrimSpace(m.ReleaseDate),
		Plot:       strings.TrimSpace(m.Overview),
	}

	if result.ExternalID == "" {
		result.ExternalID = tmdbIDPrefix + strconv.Itoa(m.ID)
	}

	var directors []string
	for _, c := range m.Credits.Crew {
		if c.Job == "Director" {
			directors = append(directors, c.Name)
		}
	}
	result.Director = strings.Join(directors, ", ")

	genres := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		genres = append(genres, g.Name)
	}
	result.Genre = strings.Join(genres, ", ")

	if m.PosterPath != "" {
		result.PosterURL = s.imageBaseURL + "/" + strings.TrimLeft(m.PosterPath, "/")
	}

	if m.VoteCount > 0 {
		result.Rating = strconv.FormatFloat(m.VoteAverage, 'f', 1, 64)
	}

	return result
}
