package ui

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
	"github.com/desertthunder/movieweb/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LibraryView ViewState = iota
	DetailView
	AddView
	ProgressView
	ConfirmDeleteView
)

// Library is the read and delete side of the library store.
//
// Implemented by [repositories.LibraryRepository].
type Library interface {
	List(ctx context.Context, accountID string, filter models.ListFilter) iter.Seq2[*models.LibraryEntry, error]
	Delete(ctx context.Context, accountID, entryID string) error
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	accountID    string
	view         ViewState
	reconciler   tasks.Reconciler
	library      Library
	width        int
	height       int
	entryList    list.Model
	entries      []*models.LibraryEntry
	selected     *models.LibraryEntry
	input        textinput.Model
	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	progress     []tasks.ProgressUpdate
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model browsing accountID's library.
func NewModel(ctx context.Context, accountID string, reconciler tasks.Reconciler, library Library) *Model {
	input := textinput.New()
	input.Placeholder = "Inception, 2010"
	input.CharLimit = 200
	input.Width = 50

	entryList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	entryList.Title = fmt.Sprintf("Library of %s", accountID)

	return &Model{
		ctx:        ctx,
		accountID:  accountID,
		view:       LibraryView,
		reconciler: reconciler,
		library:    library,
		entryList:  entryList,
		input:      input,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// ViewState returns the view currently shown.
func (m *Model) ViewState() ViewState { return m.view }

// Init loads the library.
func (m *Model) Init() tea.Cmd {
	return m.fetchEntries()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.entryList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case LibraryView:
			return m.handleLibraryKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case AddView:
			return m.handleAddKeys(msg)
		case ProgressView:
			return m.handleProgressKeys(msg)
		case ConfirmDeleteView:
			return m.handleConfirmKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgEntriesFetched:
		data := msg.data.(entriesFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.entries = data.entries
		items := make([]list.Item, len(data.entries))
		for i, entry := range data.entries {
			items[i] = entryItem{entry: entry}
		}
		return m, m.entryList.SetItems(items)

	case MsgProgressUpdate:
		m.progress = append(m.progress, msg.data.(tasks.ProgressUpdate))
		return m, m.waitForProgress()

	case MsgAddComplete:
		data := msg.data.(addComplete)
		m.progressChan = nil
		m.doneChan = nil
		switch {
		case data.err == nil:
			m.status = styles.ok.Render(fmt.Sprintf("✓ Added %s (%s)", data.result.Entry.Title, data.result.Entry.DisplayYear()))
		case errors.Is(data.err, shared.ErrDuplicateEntry):
			m.status = styles.warn.Render(shared.UserMessage(data.err))
		default:
			m.status = styles.err.Render(shared.UserMessage(data.err))
		}
		return m, m.fetchEntries()

	case MsgDeleteComplete:
		data := msg.data.(deleteComplete)
		m.selected = nil
		m.view = LibraryView
		if data.err != nil {
			m.status = styles.err.Render(shared.UserMessage(data.err))
			return m, nil
		}
		m.status = styles.ok.Render("✓ Entry deleted")
		return m, m.fetchEntries()
	}
	return m, nil
}

func (m *Model) handleLibraryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.entryList.FilterState() == list.Filtering {
		return m.updateComponents(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if entry := m.selectedEntry(); entry != nil {
			m.selected = entry
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.add):
		m.status = ""
		m.input.Reset()
		m.view = AddView
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.remove):
		if entry := m.selectedEntry(); entry != nil {
			m.selected = entry
			m.view = ConfirmDeleteView
		}
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.status = ""
		return m, m.fetchEntries()
	}

	return m.updateComponents(msg)
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = LibraryView
		m.selected = nil
	case key.Matches(msg, m.keys.remove):
		m.view = ConfirmDeleteView
	}
	return m, nil
}

// handleAddKeys routes everything except enter, esc, and ctrl+c to the text input.
func (m *Model) handleAddKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.input.Blur()
		m.view = LibraryView
		return m, nil
	case "enter":
		item := tasks.ParseImportLine(m.input.Value())
		if item.Title == "" {
			m.status = styles.err.Render("Enter a title")
			return m, nil
		}
		m.input.Blur()
		m.view = ProgressView
		return m, m.startAdd(item)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleProgressKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.progressChan != nil {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = LibraryView
		m.progress = nil
	case key.Matches(msg, m.keys.add):
		m.progress = nil
		m.status = ""
		m.input.Reset()
		m.view = AddView
		return m, m.input.Focus()
	}
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.deleteEntry(m.selected.ID)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = LibraryView
		m.selected = nil
	}
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case LibraryView:
		m.entryList, cmd = m.entryList.Update(msg)
	case AddView:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedEntry() *models.LibraryEntry {
	if item, ok := m.entryList.SelectedItem().(entryItem); ok {
		return item.entry
	}
	return nil
}

func (m *Model) fetchEntries() tea.Cmd {
	ctx, accountID, library := m.ctx, m.accountID, m.library
	return func() tea.Msg {
		var entries []*models.LibraryEntry
		for entry, err := range library.List(ctx, accountID, models.ListFilter{}) {
			if err != nil {
				return entriesFetchedMsg(nil, err)
			}
			entries = append(entries, entry)
		}
		return entriesFetchedMsg(entries, nil)
	}
}

func (m *Model) deleteEntry(entryID string) tea.Cmd {
	ctx, accountID, library := m.ctx, m.accountID, m.library
	return func() tea.Msg {
		return deleteCompleteMsg(entryID, library.Delete(ctx, accountID, entryID))
	}
}

// startAdd runs the add in the background. Progress updates arrive on progressChan;
// the final outcome is delivered on doneChan once progressChan is closed.
func (m *Model) startAdd(item tasks.ImportItem) tea.Cmd {
	m.progress = nil
	m.progressChan = make(chan tasks.ProgressUpdate, 16)
	m.doneChan = make(chan Msg, 1)

	progress, done := m.progressChan, m.doneChan
	go func() {
		result, err := m.reconciler.AddByTitle(m.ctx, progress, m.accountID, item.Title, item.Year)
		close(progress)
		done <- addCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return nil
		}
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.err))
	}

	switch m.view {
	case LibraryView:
		return m.renderLibrary()
	case DetailView:
		return m.renderDetail()
	case AddView:
		return m.renderAdd()
	case ProgressView:
		return m.renderProgress()
	case ConfirmDeleteView:
		return m.renderConfirm()
	default:
		return ""
	}
}

func (m *Model) renderLibrary() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.add, m.keys.remove, m.keys.refresh, m.keys.quit})
	if m.status != "" {
		return fmt.Sprintf("%s\n%s\n\n%s", m.entryList.View(), m.status, helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.entryList.View(), helpView)
}

func (m *Model) renderDetail() string {
	e := m.selected
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("%s (%s)", e.Title, e.DisplayYear())))
	b.WriteString("\n")

	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", styles.label.Render(label), value)
	}
	row("Director", e.Director)
	row("Genre", e.Genre)
	row("Rating", e.DisplayRating())
	if e.PersonalRating != nil {
		row("My rating", fmt.Sprintf("%d/10", *e.PersonalRating))
	}
	row("External ID", e.DisplayExternalID())
	row("Added", e.CreatedAt.Format("2006-01-02"))
	if e.Plot != "" {
		fmt.Fprintf(&b, "\n%s\n", e.Plot)
	}
	if e.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n%s\n", styles.label.Render("Notes"), e.Notes)
	}
	if e.Degraded() {
		fmt.Fprintf(&b, "\n%s\n", styles.warn.Render("Degraded: "+models.JoinFlags(e.Flags)))
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.remove, m.keys.quit}))
	return b.String()
}

func (m *Model) renderAdd() string {
	title := styles.title.Render("Add a movie")
	hint := styles.help.Render("title, optionally followed by a comma and the release year")
	submit := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add"))
	helpView := m.help.ShortHelpView([]key.Binding{submit, m.keys.back})

	out := fmt.Sprintf("%s\n%s\n\n%s\n", title, m.input.View(), hint)
	if m.status != "" {
		out += "\n" + m.status + "\n"
	}
	return out + "\n" + helpView
}

func (m *Model) renderProgress() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Adding to library"))
	b.WriteString("\n")

	for _, update := range m.progress {
		fmt.Fprintf(&b, "  %-18s %s\n", update.State, update.Message)
	}

	if m.progressChan != nil {
		b.WriteString(styles.help.Render("\nWorking..."))
		return b.String()
	}

	fmt.Fprintf(&b, "\n%s\n\n", m.status)
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.add, m.keys.quit}))
	return b.String()
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Remove '%s' from your library?", m.selected.Title))
	info := fmt.Sprintf("\n%s (%s)\n", m.selected.Director, m.selected.DisplayYear())
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}
