// Package models defines domain entities and persistence interfaces for the movieweb library service.
//
// The package contains two categories of types:
//
// 1. Transient values: produced and consumed inside a single reconciliation
//   - [ProviderResult] : flat, stringly typed response from a metadata provider
//   - [CanonicalFields] : strictly typed output of the normalizer
//   - [EditableFields] : the user-editable subset of an entry
//   - [ListFilter] : criteria for browsing a library
//
// 2. Persistent entities: database-backed records scoped by account
//   - [Account] : the unit of data ownership
//   - [LibraryEntry] : one normalized movie owned by an account
//
// [Account] implements the [Model] interface, and the [Repository] interface defines its CRUD operations.
// Library entries are always reached through an account ID, so their store takes one on every call.
package models
