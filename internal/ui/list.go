package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/movieweb/internal/models"
)

var (
	_ list.Item = entryItem{}
)

// entryItem wraps [models.LibraryEntry] to implement [list.Item].
type entryItem struct {
	entry *models.LibraryEntry
}

func (i entryItem) FilterValue() string { return i.entry.Title }
func (i entryItem) Title() string {
	return fmt.Sprintf("%s (%s)", i.entry.Title, i.entry.DisplayYear())
}
func (i entryItem) Description() string {
	desc := i.entry.Director
	if i.entry.Genre != "" {
		if desc != "" {
			desc += " • "
		}
		desc += i.entry.Genre
	}
	if i.entry.PersonalRating != nil {
		desc = fmt.Sprintf("%s • ★ %d/10", desc, *i.entry.PersonalRating)
	}
	return desc
}
