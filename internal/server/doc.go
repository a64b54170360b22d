// Package server provides HTTP routing, middleware, and the JSON API over an account's movie library.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally, registering "METHOD /path" patterns
// so the mux handles method filtering and path wildcards.
//
// # Accounts
//
// [AccountMiddleware] resolves the caller before any /library handler runs. With server.jwt_secret set
// it expects an HS256 bearer token whose subject is the account ID (see [IssueToken]); otherwise it
// trusts the X-Account-ID header, which is only suitable on a trusted network.
//
// # Routes
//
//	GET    /library          list entries, newest first (?title= ?year= ?genre= ?limit=)
//	POST   /library          add by {"title", "year"}
//	POST   /library/preview  look up without storing
//	GET    /library/{id}     one entry
//	PATCH  /library/{id}     edit {"notes", "personal_rating"}
//	DELETE /library/{id}     remove an entry
//	GET    /healthz          database ping
//	GET    /metrics          Prometheus metrics
//
// # Errors
//
// Failures are returned as {"error", "code"} bodies with statuses chosen by [StatusFor]:
// 503 when the provider is down, 404 for a miss or an unknown entry, 409 with "existing_id"
// when the movie is already in the library, 400 for invalid input, and 401 without an identity.
package server
