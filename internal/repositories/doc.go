// Package repositories implements SQLite persistence for accounts and their movie libraries.
//
// Key Implementations:
//   - [AccountRepository] : account persistence with name lookups and cascading hard deletes
//   - [LibraryRepository] : per-account library entries with atomic duplicate enforcement
//
// Every [LibraryRepository] method takes the owning account ID and scopes its query to it,
// so an entry is only reachable through the account that owns it. Lookups outside the
// owner's scope report [shared.ErrNotFound].
//
// Duplicate detection and insertion share one immediate transaction, and partial unique
// indexes back the check. Constraint violations surface as [shared.DuplicateEntryError],
// never as raw driver errors.
//
// Sequence numbers provide stable creation ordering independent of UUIDs and timestamps.
// The [NextSequence] function increments per-table counters stored in dedicated sequence tables.
package repositories
