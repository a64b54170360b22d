// Package services defines the [MetadataProvider] interface for movie metadata APIs and implements it for OMDb and TMDB.
//
// # Provider Interface
//
// A provider turns a title, optionally disambiguated by a release year, into a flat
// [models.ProviderResult]. Everything stays a string at this layer; typing and length limits
// are the normalizer's job. [NewProvider] picks the implementation named in the config.
//
// # OMDb Implementation
//
// [OMDbService] queries the OMDb "t" endpoint with the api key as a query parameter.
// OMDb reports misses with Response "False"; "Movie not found!" maps to [shared.ErrNoMatch],
// any other error message is treated as the provider being unavailable.
//
// # TMDB Implementation
//
// [TMDBService] searches, then fetches the movie with its credits to find the director.
// The read access token is sent as a bearer token through an [oauth2] static token source.
//
// # Error Handling
//
// Lookups are bounded by the configured timeout, both on the [http.Client] and on the request context.
//   - [shared.ErrProviderUnavailable] : timeout, transport failure, non-2xx status, undecodable body
//   - [shared.ErrNoMatch] : the provider answered but knows no such title
//
// Every lookup is recorded in the provider metrics with its outcome and latency.
package services
