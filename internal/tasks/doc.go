// Package tasks reconciles user-supplied titles into library entries with real-time progress reporting.
//
// # Core Operations
//
// The [Reconciler] interface defines three operations:
//
//  1. [Reconciler.AddByTitle] : look up, normalize, and store one title
//     - Queries the configured [services.MetadataProvider]
//     - Normalizes the result, logging and counting degraded fields
//     - Rejects the title when the account already has it, otherwise inserts it
//
//  2. [Reconciler.Preview] : look up and normalize without storing
//
//  3. [Reconciler.Edit] : validate and apply notes or a personal rating
//
// [ReconciliationService.Import] adds many titles in sequence, paced by a rate limiter, and
// [Exporter.Export] writes a library snapshot with optional posters fetched by a worker pool.
//
// # States
//
// Every add request walks the [State] machine:
//
//	PENDING_LOOKUP -> RESOLVED | NOT_FOUND | PROVIDER_DOWN
//	RESOLVED -> DUPLICATE_CHECK -> INSERTED | REJECTED_DUPLICATE
//
// The store is written only on the way to INSERTED, so a provider outage or a miss leaves
// the library untouched. Nothing is retried.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains the state, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking, and a nil channel disables reporting.
package tasks
