package main

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/analogrithems/rustored/internal/config"
	"github.com/analogrithems/rustored/internal/session"
)

// handleKey routes key input by mode: popup keys first (a popup swallows
// everything else), then the editing buffer, then normal navigation.
func (m sessionModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		if m.cancelRun != nil {
			m.cancelRun()
		}
		m.quitting = true
		return m, tea.Quit
	}

	if m.popup.Active() {
		return m.handlePopupKey(key)
	}
	if m.editing {
		return m.handleEditKey(msg)
	}
	return m.handleNormalKey(key)
}

// handlePopupKey implements the modal key table. Keys not listed for the
// active popup are dropped.
func (m sessionModel) handlePopupKey(key string) (tea.Model, tea.Cmd) {
	switch m.popup.Kind {
	case session.PopupConfirmRestore:
		switch key {
		case "y", "Y", "enter":
			m.popup.AcceptConfirm()
			return m.startRestore()
		case "n", "N", "esc":
			m.popup.DeclineConfirm()
		}

	case session.PopupDownloading:
		if key == "esc" {
			m.popup.RequestCancel()
		}

	case session.PopupConfirmCancel:
		switch key {
		case "y", "Y", "enter":
			if m.popup.AcceptCancel() && m.cancelRun != nil {
				m.cancelRun()
			}
		case "n", "N", "esc":
			m.popup.DeclineCancel()
		}

	case session.PopupRestoring:
		// The apply phase is never interrupted mid-write.

	case session.PopupError, session.PopupSuccess, session.PopupTestResult:
		switch key {
		case "enter", "esc", " ":
			m.popup.Dismiss()
		}
	}
	return m, nil
}

// handleEditKey feeds the textinput buffer; enter commits, esc discards.
func (m sessionModel) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.commitEdit()
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m sessionModel) handleNormalKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "ctrl+z":
		return m, tea.Suspend

	case "tab":
		m.focus.CycleGroup()

	case "up":
		if m.focus.Current() == session.FieldSnapshotList {
			m.catalog.MoveUp()
		} else {
			m.focus.Advance(session.Prev)
		}

	case "down":
		if m.focus.Current() == session.FieldSnapshotList {
			m.catalog.MoveDown()
		} else {
			m.focus.Advance(session.Next)
		}

	case "1":
		m.selectTarget(config.TargetPostgres)
	case "2":
		m.selectTarget(config.TargetElasticsearch)
	case "3":
		m.selectTarget(config.TargetQdrant)

	case "t":
		return m, testStoreCmd(m.store, m.log)

	case "p":
		if err := m.targets.Validate(m.focus.Target()); err != nil {
			m.popup.ShowError(err.Error())
			return m, nil
		}
		return m, testTargetCmd(m.adapterFor(m.focus.Target()))

	case "r":
		if m.orch.Running() {
			return m, nil
		}
		m.loading = true
		return m, loadCatalogCmd(m.store, m.log)

	case "enter":
		return m.activateField()
	}
	return m, nil
}

// activateField handles enter on the focused element: confirm a snapshot,
// cycle the target picker, toggle a boolean, or start editing.
func (m sessionModel) activateField() (tea.Model, tea.Cmd) {
	f := m.focus.Current()
	switch f {
	case session.FieldSnapshotList:
		snap, ok := m.catalog.Selected()
		if !ok {
			return m, nil
		}
		if err := m.targets.Validate(m.focus.Target()); err != nil {
			m.popup.ShowError(fmt.Sprintf("%s settings invalid: %v", m.focus.Target(), err))
			return m, nil
		}
		m.popup.ShowConfirm(snap)
		return m, nil

	case session.FieldTargetPicker:
		next := (m.focus.Target() + 1) % config.Target(len(config.Targets))
		m.selectTarget(next)
		return m, nil

	case session.FieldPathStyle:
		m.store.PathStyle = !m.store.PathStyle
		m.loading = true
		return m, loadCatalogCmd(m.store, m.log)

	case session.FieldPgSSL:
		m.targets.Ensure(config.TargetPostgres)
		m.targets.Postgres.UseSSL = !m.targets.Postgres.UseSSL
		return m, nil
	}

	m.editing = true
	m.input.SetValue(m.fieldValue(f))
	m.input.CursorEnd()
	m.input.Focus()
	return m, nil
}

// commitEdit writes the buffer into the focused field. Committing an
// object-store field rebuilds the client and reloads the catalog.
func (m sessionModel) commitEdit() (tea.Model, tea.Cmd) {
	f := m.focus.Current()
	value := m.input.Value()
	m.editing = false
	m.input.Blur()

	if err := m.setField(f, value); err != nil {
		m.popup.ShowError(err.Error())
		return m, nil
	}
	if session.GroupOf(f) == session.GroupObjectStore {
		m.loading = true
		return m, loadCatalogCmd(m.store, m.log)
	}
	return m, nil
}

func (m *sessionModel) selectTarget(t config.Target) {
	m.targets.Ensure(t)
	m.focus.SetTarget(t)
}

// fieldValue returns the raw (unmasked) value of a field for editing.
func (m *sessionModel) fieldValue(f session.Field) string {
	m.targets.Ensure(m.focus.Target())
	switch f {
	case session.FieldBucket:
		return m.store.Bucket
	case session.FieldRegion:
		return m.store.Region
	case session.FieldPrefix:
		return m.store.Prefix
	case session.FieldEndpoint:
		return m.store.Endpoint
	case session.FieldAccessKey:
		return m.store.AccessKeyID
	case session.FieldSecretKey:
		return m.store.SecretAccessKey
	case session.FieldPgHost:
		return m.targets.Postgres.Host
	case session.FieldPgPort:
		return strconv.Itoa(m.targets.Postgres.Port)
	case session.FieldPgUser:
		return m.targets.Postgres.Username
	case session.FieldPgPassword:
		return m.targets.Postgres.Password
	case session.FieldPgDatabase:
		return m.targets.Postgres.Database
	case session.FieldEsHost:
		return m.targets.Elasticsearch.Host
	case session.FieldEsIndex:
		return m.targets.Elasticsearch.Index
	case session.FieldQdrantHost:
		return m.targets.Qdrant.Host
	case session.FieldQdrantCollection:
		return m.targets.Qdrant.Collection
	case session.FieldQdrantAPIKey:
		return m.targets.Qdrant.APIKey
	}
	return ""
}

// setField stores a committed value. Only the port needs parsing; booleans
// are toggled in activateField, never typed.
func (m *sessionModel) setField(f session.Field, value string) error {
	m.targets.Ensure(m.focus.Target())
	switch f {
	case session.FieldBucket:
		m.store.Bucket = value
	case session.FieldRegion:
		m.store.Region = value
	case session.FieldPrefix:
		m.store.Prefix = value
	case session.FieldEndpoint:
		m.store.Endpoint = value
	case session.FieldAccessKey:
		m.store.AccessKeyID = value
	case session.FieldSecretKey:
		m.store.SecretAccessKey = value
	case session.FieldPgHost:
		m.targets.Postgres.Host = value
	case session.FieldPgPort:
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("port must be a number, got %q", value)
		}
		m.targets.Postgres.Port = port
	case session.FieldPgUser:
		m.targets.Postgres.Username = value
	case session.FieldPgPassword:
		m.targets.Postgres.Password = value
	case session.FieldPgDatabase:
		m.targets.Postgres.Database = value
	case session.FieldEsHost:
		m.targets.Elasticsearch.Host = value
	case session.FieldEsIndex:
		m.targets.Elasticsearch.Index = value
	case session.FieldQdrantHost:
		m.targets.Qdrant.Host = value
	case session.FieldQdrantCollection:
		m.targets.Qdrant.Collection = value
	case session.FieldQdrantAPIKey:
		m.targets.Qdrant.APIKey = value
	}
	return nil
}
