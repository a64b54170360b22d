package models

// ProviderResult is the flat response of a metadata provider.
//
// Every field is always present. Values the provider omitted or marked unavailable are empty strings.
// It is never persisted and is consumed only by the normalizer.
type ProviderResult struct {
	Provider   string `json:"provider"`
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	Year       string `json:"year"`
	Director   string `json:"director"`
	Genre      string `json:"genre"`
	Plot       string `json:"plot"`
	PosterURL  string `json:"poster_url"`
	Rating     string `json:"rating"`
}
