package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/analogrithems/rustored/internal/config"
	"github.com/analogrithems/rustored/internal/objectstore"
	"github.com/analogrithems/rustored/internal/restore"
	"github.com/analogrithems/rustored/internal/session"
	"github.com/analogrithems/rustored/internal/target"
)

// ---------------------------------------------------------------------------
// Snapshot-restore TUI — object-store browser with three restore backends.
// The model is the single consumer of all events; restore progress arrives
// over a channel drained by a self-re-arming command, so ordering holds.
// ---------------------------------------------------------------------------

// --- Messages ---

type catalogMsg struct {
	client *objectstore.Client
	snaps  []objectstore.Snapshot
	err    error
}

type restoreEventMsg struct {
	ev restore.Event
	ok bool // false when the stream closed
}

type testResultMsg struct {
	label string
	err   error
}

// --- Model ---

type sessionModel struct {
	store    config.ObjectStore
	targets  config.TargetSet
	focus    *session.Focus
	popup    session.Popup
	catalog  session.Catalog
	loadErr  string // catalog load failure shown inline, not modal
	loading  bool

	// Editing input mode
	editing bool
	input   textinput.Model

	// Restore run
	orch      *restore.Orchestrator
	client    *objectstore.Client
	events    <-chan restore.Event
	cancelRun context.CancelFunc
	phase     restore.Phase
	detail    string

	spin spinner.Model
	bar  progress.Model
	log  zerolog.Logger

	termWidth  int
	termHeight int
	quitting   bool
}

func newSessionModel(store config.ObjectStore, targets config.TargetSet, orch *restore.Orchestrator, log zerolog.Logger) sessionModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = tc.SpinnerStyle

	ti := textinput.New()
	ti.Prompt = ""

	fo := session.NewFocus()
	targets.Ensure(fo.Target())

	return sessionModel{
		store:   store,
		targets: targets,
		focus:   fo,
		orch:    orch,
		spin:    sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		input:   ti,
		log:     log,
		loading: true,
	}
}

func (m sessionModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, loadCatalogCmd(m.store, m.log))
}

// --- Commands ---

// loadCatalogCmd builds a fresh object-store client and lists snapshots.
// The client is rebuilt on every load so edited credentials take effect.
func loadCatalogCmd(store config.ObjectStore, log zerolog.Logger) tea.Cmd {
	return func() tea.Msg {
		if err := store.Validate(); err != nil {
			return catalogMsg{err: err}
		}
		ctx := context.Background()
		client, err := objectstore.New(ctx, store, log)
		if err != nil {
			return catalogMsg{err: err}
		}
		snaps, err := client.List(ctx)
		if err != nil {
			return catalogMsg{client: client, err: err}
		}
		return catalogMsg{client: client, snaps: snaps}
	}
}

// waitEventCmd delivers the next restore event; Update re-arms it until
// the stream closes.
func waitEventCmd(events <-chan restore.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return restoreEventMsg{ev: ev, ok: ok}
	}
}

// testStoreCmd probes the object store with the current settings.
func testStoreCmd(store config.ObjectStore, log zerolog.Logger) tea.Cmd {
	return func() tea.Msg {
		if err := store.Validate(); err != nil {
			return testResultMsg{label: "Object Store", err: err}
		}
		ctx := context.Background()
		client, err := objectstore.New(ctx, store, log)
		if err != nil {
			return testResultMsg{label: "Object Store", err: err}
		}
		return testResultMsg{label: "Object Store", err: client.TestConnection(ctx)}
	}
}

// testTargetCmd probes the active backend.
func testTargetCmd(adapter target.Adapter) tea.Cmd {
	return func() tea.Msg {
		return testResultMsg{label: adapter.Name(), err: adapter.TestConnection(context.Background())}
	}
}

// adapterFor builds the adapter for the selected target. The set is
// ensured, so the config pointers are never nil.
func (m *sessionModel) adapterFor(t config.Target) target.Adapter {
	m.targets.Ensure(t)
	switch t {
	case config.TargetElasticsearch:
		return target.NewElasticsearch(*m.targets.Elasticsearch, m.log)
	case config.TargetQdrant:
		return target.NewQdrant(*m.targets.Qdrant, m.log)
	default:
		return target.NewPostgres(*m.targets.Postgres, m.log)
	}
}

// --- Update ---

func (m sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.termHeight = msg.Height
		m.bar.Width = popupBarWidth(msg.Width)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case catalogMsg:
		m.loading = false
		if msg.client != nil {
			m.client = msg.client
		}
		if msg.err != nil {
			m.loadErr = msg.err.Error()
			m.catalog.Replace(nil)
			return m, nil
		}
		m.loadErr = ""
		m.catalog.Replace(msg.snaps)
		return m, nil

	case testResultMsg:
		if msg.err != nil {
			m.popup.ShowTestResult(msg.label, msg.err.Error(), false)
		} else {
			m.popup.ShowTestResult(msg.label, "connection ok", true)
		}
		return m, nil

	case restoreEventMsg:
		return m.handleRestoreEvent(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// handleRestoreEvent folds one pipeline event into the popup machine and
// re-arms the drain until the stream closes.
func (m sessionModel) handleRestoreEvent(msg restoreEventMsg) (tea.Model, tea.Cmd) {
	if !msg.ok {
		m.events = nil
		m.cancelRun = nil
		return m, nil
	}

	switch ev := msg.ev.(type) {
	case restore.PhaseStarted:
		m.phase = ev.Phase
		m.detail = ""
		if ev.Phase == restore.PhaseApply {
			m.popup.BeginRestore()
		}

	case restore.Progress:
		m.detail = ev.Detail
		m.popup.SetProgress(ev.Done, ev.Total)

	case restore.Outcome:
		m.finishRun(ev)
	}
	return m, waitEventCmd(m.events)
}

// finishRun maps a terminal outcome onto the popup machine. The popup may
// sit in any in-flight state (or be hidden after an accepted cancel), so
// transitions are forced through legal steps.
func (m *sessionModel) finishRun(out restore.Outcome) {
	switch out.Code {
	case restore.OutcomeSuccess:
		m.popup.DeclineCancel()
		m.popup.BeginRestore()
		if !m.popup.Succeed(out.Reason) {
			m.popup.ShowTestResult("Restore", out.Reason, true)
		}
	case restore.OutcomeCancelled:
		// The operator already confirmed the cancel; the popup is hidden.
		m.log.Info().Str("reason", out.Reason).Msg("restore cancelled")
	default:
		if !m.popup.Fail(fmt.Sprintf("%s: %s", out.Code, out.Reason)) {
			m.popup.ShowError(fmt.Sprintf("%s: %s", out.Code, out.Reason))
		}
	}
}

// startRestore launches the pipeline for the confirmed snapshot.
func (m sessionModel) startRestore() (tea.Model, tea.Cmd) {
	snap := m.popup.Snapshot
	if m.client == nil {
		m.popup.Fail("object store is not connected")
		return m, nil
	}
	adapter := m.adapterFor(m.focus.Target())

	ctx, cancel := context.WithCancel(context.Background())
	events, err := m.orch.Run(ctx, snap, m.client, adapter)
	if err != nil {
		cancel()
		m.popup.Fail(err.Error())
		return m, nil
	}
	m.cancelRun = cancel
	m.events = events
	m.phase = restore.PhaseDownload
	m.detail = ""
	return m, tea.Batch(m.spin.Tick, waitEventCmd(events))
}
