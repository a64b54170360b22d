package tasks

import (
	"fmt"

	"github.com/desertthunder/movieweb/internal/models"
)

// ProgressUpdate represents a progress event during a reconciliation, import, or export.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	State   State  // Reconciliation state reached
	Step    int    // Current step number
	Total   int    // Total steps
	Message string // Human-readable message for display
	Data    any    // Optional state-specific data for advanced UIs
}

// State is a node of the add-by-title state machine.
//
//	PENDING_LOOKUP -> RESOLVED | NOT_FOUND | PROVIDER_DOWN
//	RESOLVED -> DUPLICATE_CHECK -> INSERTED | REJECTED_DUPLICATE
type State int

const (
	PendingLookup State = iota
	Resolved
	NotFound
	ProviderDown
	DuplicateCheck
	Inserted
	RejectedDuplicate
	Exporting
)

func (s State) String() string {
	switch s {
	case PendingLookup:
		return "PENDING_LOOKUP"
	case Resolved:
		return "RESOLVED"
	case NotFound:
		return "NOT_FOUND"
	case ProviderDown:
		return "PROVIDER_DOWN"
	case DuplicateCheck:
		return "DUPLICATE_CHECK"
	case Inserted:
		return "INSERTED"
	case RejectedDuplicate:
		return "REJECTED_DUPLICATE"
	case Exporting:
		return "EXPORTING"
	default:
		return ""
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case NotFound, ProviderDown, Inserted, RejectedDuplicate:
		return true
	default:
		return false
	}
}

func lookupUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		State:   PendingLookup,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Looking up %q...", title),
	}
}

func resolvedUpdate(step, total int, fields *models.CanonicalFields) ProgressUpdate {
	year := "-"
	if fields.Year != nil {
		year = fmt.Sprintf("%d", *fields.Year)
	}
	return ProgressUpdate{
		State:   Resolved,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Found %s (%s)", fields.Title, year),
		Data:    fields,
	}
}

func notFoundUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		State:   NotFound,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("No movie matched %q", title),
	}
}

func providerDownUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		State:   ProviderDown,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Metadata provider unavailable: %v", err),
	}
}

func duplicateCheckUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		State:   DuplicateCheck,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Checking library for %s...", title),
	}
}

func insertedUpdate(step, total int, entry *models.LibraryEntry) ProgressUpdate {
	return ProgressUpdate{
		State:   Inserted,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✓ Added %s (ID: %s)", entry.Title, entry.ID),
		Data:    entry,
	}
}

func rejectedDuplicateUpdate(step, total int, title, existingID string) ProgressUpdate {
	return ProgressUpdate{
		State:   RejectedDuplicate,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %s is already in the library (ID: %s)", title, existingID),
		Data:    existingID,
	}
}

func importItemUpdate(step, total int, item ImportItem, outcome ImportOutcome) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s: %s", step, total, item.Title, outcome.State)
	if outcome.Err != nil {
		msg = fmt.Sprintf("[%d/%d] %s: %s (%v)", step, total, item.Title, outcome.State, outcome.Err)
	}
	return ProgressUpdate{
		State:   outcome.State,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    outcome,
	}
}

func exportingUpdate(step, total int, message string) ProgressUpdate {
	return ProgressUpdate{
		State:   Exporting,
		Step:    step,
		Total:   total,
		Message: message,
	}
}
