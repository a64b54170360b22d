package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrUnknownProvider    = fmt.Errorf("unknown metadata provider")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrInvalidToken     = fmt.Errorf("invalid access token")

	// Metadata provider errors
	ErrProviderUnavailable = fmt.Errorf("metadata provider unavailable")
	ErrProviderDown        = fmt.Errorf("metadata provider is down")
	ErrNoMatch             = fmt.Errorf("no matching title")

	// Library errors
	ErrDuplicateEntry     = fmt.Errorf("entry already in library")
	ErrNotFound           = fmt.Errorf("not found")
	ErrDuplicateAccount   = fmt.Errorf("account name already taken")
	ErrValidationDegraded = fmt.Errorf("metadata degraded during normalization")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// DuplicateEntryError reports that a film is already in an account's library.
//
// It matches [ErrDuplicateEntry] with [errors.Is] and carries the ID of the entry that already exists.
type DuplicateEntryError struct {
	ExistingID string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDuplicateEntry, e.ExistingID)
}

func (e *DuplicateEntryError) Is(target error) bool {
	return target == ErrDuplicateEntry
}

// ExistingEntryID returns the existing entry ID carried by a [DuplicateEntryError] in err's chain.
func ExistingEntryID(err error) (string, bool) {
	var dup *DuplicateEntryError
	if errors.As(err, &dup) {
		return dup.ExistingID, true
	}
	return "", false
}

// UserMessage maps an error to the message shown to the person who triggered it.
//
// Every terminal outcome of a library operation has its own message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProviderDown), errors.Is(err, ErrProviderUnavailable):
		return "The movie database is not responding right now. Please try again in a moment."
	case errors.Is(err, ErrNoMatch):
		return "No movie matched that title. Check the spelling or add a release year."
	case errors.Is(err, ErrDuplicateEntry):
		if id, ok := ExistingEntryID(err); ok {
			return fmt.Sprintf("This movie is already in your library (entry %s).", id)
		}
		return "This movie is already in your library."
	case errors.Is(err, ErrDuplicateAccount):
		return "That account name is already taken."
	case errors.Is(err, ErrNotFound):
		return "That entry does not exist in your library."
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrInvalidToken):
		return "You need to sign in first."
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingArgument), errors.Is(err, ErrInvalidArgument):
		return fmt.Sprintf("The request was not valid: %v", err)
	default:
		return "Something went wrong. Please try again."
	}
}
