// Package monitor is the terminal dashboard: live store stats, sync
// state, recent submissions and the system log in one screen, with
// manual sync runs on a keypress.
package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fieldpost/fieldpost/internal/models"
	"github.com/fieldpost/fieldpost/internal/store"
	"github.com/fieldpost/fieldpost/internal/sync"
)

// Panel represents which panel is active
type Panel int

const (
	PanelOverview Panel = iota
	PanelSubmissions
	PanelLogs
)

const panelCount = 3

// MinWidth is the minimum terminal width for proper display
const MinWidth = 50

// MinHeight is the minimum terminal height for proper display
const MinHeight = 16

// TickMsg triggers a data refresh
type TickMsg time.Time

// SyncDoneMsg reports a finished manual sync cycle
type SyncDoneMsg struct {
	Report sync.Report
	Err    error
}

// Model is the main Bubble Tea model for the monitor TUI
type Model struct {
	Store  *store.Store
	Engine *sync.Engine

	// Window dimensions
	Width  int
	Height int

	// Panel data
	Stats       models.Stats
	SyncState   SyncState
	Submissions []models.Submission
	Logs        []models.LogEntry
	LastRefresh time.Time
	Err         error

	// Sync run state
	Syncing    bool
	Spinner    spinner.Model
	LastReport *sync.Report
	SyncErr    error

	// UI state
	ActivePanel  Panel
	ScrollOffset map[Panel]int
	ShowHelp     bool

	// Configuration
	RefreshInterval time.Duration

	keys Keymap
}

// NewModel creates a new monitor model
func NewModel(st *store.Store, engine *sync.Engine, interval time.Duration) Model {
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(spinnerStyle),
	)
	return Model{
		Store:           st,
		Engine:          engine,
		Spinner:         sp,
		ScrollOffset:    make(map[Panel]int),
		ActivePanel:     PanelOverview,
		RefreshInterval: interval,
		keys:            DefaultKeymap(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchData(),
		m.scheduleTick(),
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case RefreshDataMsg:
		m.Stats = msg.Stats
		m.SyncState = msg.SyncState
		m.Submissions = msg.Submissions
		m.Logs = msg.Logs
		m.LastRefresh = msg.Timestamp
		m.Err = msg.Err
		return m, nil

	case SyncDoneMsg:
		m.Syncing = false
		report := msg.Report
		m.LastReport = &report
		m.SyncErr = msg.Err
		return m, m.fetchData()

	case spinner.TickMsg:
		if !m.Syncing {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.NextPanel):
		m.ActivePanel = (m.ActivePanel + 1) % panelCount
		return m, nil

	case key.Matches(msg, m.keys.PrevPanel):
		m.ActivePanel = (m.ActivePanel + panelCount - 1) % panelCount
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.ScrollOffset[m.ActivePanel]++
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.ScrollOffset[m.ActivePanel] > 0 {
			m.ScrollOffset[m.ActivePanel]--
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchData()

	case key.Matches(msg, m.keys.Sync):
		return m.startSync()

	case key.Matches(msg, m.keys.Help):
		m.ShowHelp = !m.ShowHelp
		return m, nil
	}

	switch msg.String() {
	case "1":
		m.ActivePanel = PanelOverview
	case "2":
		m.ActivePanel = PanelSubmissions
	case "3":
		m.ActivePanel = PanelLogs
	}
	return m, nil
}

// startSync kicks off one sync cycle in the background. A second press
// while a cycle runs is ignored; the engine is single-flight anyway.
func (m Model) startSync() (tea.Model, tea.Cmd) {
	if m.Syncing {
		return m, nil
	}
	m.Syncing = true
	m.SyncErr = nil

	engine := m.Engine
	runCycle := func() tea.Msg {
		report, err := engine.RunCycle(context.Background())
		return SyncDoneMsg{Report: report, Err: err}
	}
	return m, tea.Batch(m.Spinner.Tick, runCycle)
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData returns a command that fetches all data and sends a RefreshDataMsg
func (m Model) fetchData() tea.Cmd {
	st := m.Store
	return func() tea.Msg {
		return FetchData(st, 30)
	}
}
