package shared

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDuplicateEntryError(t *testing.T) {
	err := fmt.Errorf("insert: %w", &DuplicateEntryError{ExistingID: "entry-1"})

	if !errors.Is(err, ErrDuplicateEntry) {
		t.Error("expected wrapped DuplicateEntryError to match ErrDuplicateEntry")
	}

	id, ok := ExistingEntryID(err)
	if !ok || id != "entry-1" {
		t.Errorf("ExistingEntryID() = %q, %v; want entry-1, true", id, ok)
	}

	if _, ok := ExistingEntryID(ErrNotFound); ok {
		t.Error("expected no existing ID for unrelated error")
	}
}

func TestUserMessage(t *testing.T) {
	tt := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "provider down", err: fmt.Errorf("%w: timeout", ErrProviderDown), want: "not responding"},
		{name: "provider unavailable", err: ErrProviderUnavailable, want: "not responding"},
		{name: "no match", err: ErrNoMatch, want: "No movie matched"},
		{name: "duplicate with id", err: &DuplicateEntryError{ExistingID: "abc"}, want: "entry abc"},
		{name: "bare duplicate", err: ErrDuplicateEntry, want: "already in your library"},
		{name: "not found", err: fmt.Errorf("update: %w", ErrNotFound), want: "does not exist"},
		{name: "invalid input", err: fmt.Errorf("%w: rating out of range", ErrInvalidInput), want: "rating out of range"},
		{name: "unknown", err: errors.New("boom"), want: "Something went wrong"},
	}

	seen := map[string]string{}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got := UserMessage(tc.err)
			if tc.want == "" {
				if got != "" {
					t.Errorf("UserMessage() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tc.want) {
				t.Errorf("UserMessage() = %q, want it to contain %q", got, tc.want)
			}
		})
	}

	for _, err := range []error{ErrProviderDown, ErrNoMatch, ErrDuplicateEntry, ErrNotFound} {
		msg := UserMessage(err)
		if prev, ok := seen[msg]; ok {
			t.Errorf("%v and %v share the message %q", prev, err, msg)
		}
		seen[msg] = err.Error()
	}
}
