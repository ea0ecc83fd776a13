// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/fininsight/finchat/internal/dispatch"
	"github.com/fininsight/finchat/internal/identity"
	"github.com/fininsight/finchat/internal/model"
	"github.com/fininsight/finchat/internal/session"
	"github.com/fininsight/finchat/internal/storage"
	"github.com/fininsight/finchat/internal/store"
	"github.com/fininsight/finchat/internal/ui/styles"
)

// =============================================================================
// FOCUS AND DIALOG STATE
// =============================================================================

// focusArea identifies which pane receives keyboard input.
type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

// dialogKind identifies the modal dialog currently open, if any.
type dialogKind int

const (
	dialogNone dialogKind = iota
	dialogNewProject
	dialogRenameProject
	dialogRenameThread
	dialogDeleteProject
	dialogDeleteThread
	dialogUpload
	dialogNotice
	dialogAccount
)

// entryKind distinguishes sidebar rows.
type entryKind int

const (
	entryProject entryKind = iota
	entryThread
)

// sidebarEntry is one selectable row in the sidebar.
type sidebarEntry struct {
	kind  entryKind
	id    string
	title string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// Key bindings
	keyMap KeyMap

	// Domain state
	account       *model.Account
	registry      *store.Registry
	directory     *store.Directory
	dispatcher    *dispatch.Dispatcher
	sessionMgr    *session.Manager
	threadStore   *storage.ThreadStore
	identityStore *identity.Store

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Markdown rendering
	renderer *glamour.TermRenderer
	markdown bool

	// Focus and sidebar
	focus  focusArea
	cursor int

	// Model selection
	modelIndex   int
	deepResearch bool

	// Dialog state
	dialog       dialogKind
	dialogInputs []textinput.Model
	dialogField  int
	dialogTarget string
	noticeText   string

	// Status
	statusMsg string
	statusSeq int
	// inflight counts backend calls whose replies have not landed.
	// The spinner runs while it is above zero.
	inflight int
	showHelp bool
}

// New creates the chat model. threadStore and identityStore may be nil
// when local persistence is unavailable; account may be nil when
// signed out.
func New(theme *styles.Theme, account *model.Account, registry *store.Registry,
	directory *store.Directory, dispatcher *dispatch.Dispatcher,
	sessionMgr *session.Manager, threadStore *storage.ThreadStore,
	identityStore *identity.Store, defaultModel string, markdown bool) Model {

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	modelIndex := 0
	for i, name := range modelNames() {
		if name == defaultModel {
			modelIndex = i
			break
		}
	}

	return Model{
		theme:         theme,
		keyMap:        DefaultKeyMap(),
		account:       account,
		registry:      registry,
		directory:     directory,
		dispatcher:    dispatcher,
		sessionMgr:    sessionMgr,
		threadStore:   threadStore,
		identityStore: identityStore,
		viewport:      vp,
		input:         ti,
		spinner:       sp,
		markdown:      markdown,
		modelIndex:    modelIndex,
	}
}

// Init starts the background cycles: the spinner, the autosave tick,
// and the initial project listing when signed in.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, session.TickCmd()}
	if m.account.IsAuthenticated() {
		cmds = append(cmds, m.dispatcher.RefreshProjects(m.account.Email))
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// SIDEBAR ENTRIES
// =============================================================================

// sidebarEntries builds the selectable sidebar rows: projects first,
// then standalone threads, both in their store order.
func (m Model) sidebarEntries() []sidebarEntry {
	var entries []sidebarEntry
	for _, p := range m.directory.Projects() {
		entries = append(entries, sidebarEntry{kind: entryProject, id: p.ID, title: p.DisplayName()})
	}
	for _, th := range m.registry.Threads() {
		entries = append(entries, sidebarEntry{kind: entryThread, id: th.ID, title: th.GetTitle()})
	}
	return entries
}

// selectedEntry returns the sidebar entry under the cursor.
func (m Model) selectedEntry() (sidebarEntry, bool) {
	entries := m.sidebarEntries()
	if m.cursor < 0 || m.cursor >= len(entries) {
		return sidebarEntry{}, false
	}
	return entries[m.cursor], true
}

// clampCursor keeps the cursor inside the entry list after items are
// added or removed.
func (m *Model) clampCursor() {
	n := len(m.sidebarEntries())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// currentModel returns the friendly name of the selected model.
func (m Model) currentModel() string {
	names := modelNames()
	return names[m.modelIndex%len(names)]
}
