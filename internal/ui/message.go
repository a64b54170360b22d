package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgEntriesFetched MsgKind = iota
	MsgProgressUpdate
	MsgAddComplete
	MsgDeleteComplete
)

type entriesFetched struct {
	entries []*models.LibraryEntry
	err     error
}

type addComplete struct {
	result *tasks.AddResult
	err    error
}

type deleteComplete struct {
	entryID string
	err     error
}

// entriesFetchedMsg is the constructor for [MsgEntriesFetched]
func entriesFetchedMsg(entries []*models.LibraryEntry, err error) Msg {
	return Msg{kind: MsgEntriesFetched, data: entriesFetched{entries, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// addCompleteMsg is the constructor for [MsgAddComplete]
func addCompleteMsg(result *tasks.AddResult, err error) Msg {
	return Msg{kind: MsgAddComplete, data: addComplete{result, err}}
}

// deleteCompleteMsg is the constructor for [MsgDeleteComplete]
func deleteCompleteMsg(entryID string, err error) Msg {
	return Msg{kind: MsgDeleteComplete, data: deleteComplete{entryID, err}}
}
