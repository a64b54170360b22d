// Package ui implements an interactive terminal browser for one account's library using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow:
//  1. [LibraryView] : Browse and filter entries, newest first
//  2. [DetailView] : Full metadata, notes, and degradation flags for one entry
//  3. [AddView] : Enter a "title[,year]" to add
//  4. [ProgressView] : Follow the add request through its reconciliation states
//  5. [ConfirmDeleteView] : Confirm removing an entry
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the ReconciliationService, providing non-blocking status reporting during adds.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, a, d, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
