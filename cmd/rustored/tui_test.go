package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/analogrithems/rustored/internal/config"
	"github.com/analogrithems/rustored/internal/objectstore"
	"github.com/analogrithems/rustored/internal/restore"
	"github.com/analogrithems/rustored/internal/session"
)

func newTestModel(t *testing.T) sessionModel {
	t.Helper()
	store := config.ObjectStore{Bucket: "backups", Endpoint: "http://localhost:9000"}
	targets := config.TargetSet{
		Postgres: &config.Postgres{Host: "db.local", Port: 5432, Username: "admin", Database: "restored"},
	}
	orch := restore.New(t.TempDir(), zerolog.Nop())
	m := newSessionModel(store, targets, orch, zerolog.Nop())
	m.loading = false
	return m
}

func withCatalog(m sessionModel, keys ...string) sessionModel {
	snaps := make([]objectstore.Snapshot, len(keys))
	for i, k := range keys {
		snaps[i] = objectstore.Snapshot{Key: k, Size: 1024, LastModified: time.Now()}
	}
	m.catalog.Replace(snaps)
	return m
}

func pressKey(t *testing.T, m sessionModel, key string) (sessionModel, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(sessionModel), cmd
}

func TestTargetSwitchRelocatesInvalidFocus(t *testing.T) {
	m := newTestModel(t)
	m.focus.Set(session.FieldEsHost)
	m.selectTarget(config.TargetElasticsearch)

	// Postgres has no EsHost field: focus must land on its first field.
	m, _ = pressKey(t, m, "1")
	if got := m.focus.Current(); got != session.FieldPgHost {
		t.Errorf("focus = %v, want PgHost after switching away from Elasticsearch", got)
	}
	if m.focus.Target() != config.TargetPostgres {
		t.Errorf("target = %v, want Postgres", m.focus.Target())
	}
}

func TestTargetSwitchPreservesFocusOutsideBackend(t *testing.T) {
	m := newTestModel(t)
	m.focus.Set(session.FieldSnapshotList)

	m, _ = pressKey(t, m, "2")
	if got := m.focus.Current(); got != session.FieldSnapshotList {
		t.Errorf("focus = %v, want SnapshotList to survive a target switch", got)
	}
	if m.focus.Target() != config.TargetElasticsearch {
		t.Errorf("target = %v, want Elasticsearch", m.focus.Target())
	}
	if m.targets.Elasticsearch == nil {
		t.Error("elasticsearch settings not created on first selection")
	}
}

func TestEnterOnSnapshotOpensConfirm(t *testing.T) {
	m := withCatalog(newTestModel(t), "backups/a.dump", "backups/b.dump")
	m.focus.Set(session.FieldSnapshotList)

	m, _ = pressKey(t, m, "enter")
	if m.popup.Kind != session.PopupConfirmRestore {
		t.Fatalf("popup = %v, want ConfirmRestore", m.popup.Kind)
	}
	if m.popup.Snapshot.Key != "backups/a.dump" {
		t.Errorf("confirm holds %q, want the selected snapshot", m.popup.Snapshot.Key)
	}
}

func TestEnterOnSnapshotRejectsInvalidBackend(t *testing.T) {
	m := withCatalog(newTestModel(t), "backups/a.dump")
	m.focus.Set(session.FieldSnapshotList)
	m.targets.Postgres.Host = ""

	m, _ = pressKey(t, m, "enter")
	if m.popup.Kind != session.PopupError {
		t.Fatalf("popup = %v, want Error for invalid backend settings", m.popup.Kind)
	}
}

func TestPopupSwallowsNavigationKeys(t *testing.T) {
	m := withCatalog(newTestModel(t), "backups/a.dump", "backups/b.dump")
	m.focus.Set(session.FieldSnapshotList)
	m, _ = pressKey(t, m, "enter")

	before := m.focus.Current()
	for _, key := range []string{"tab", "down", "r", "t", "1", "2"} {
		m, _ = pressKey(t, m, key)
	}
	if m.popup.Kind != session.PopupConfirmRestore {
		t.Errorf("popup = %v, want ConfirmRestore to survive stray keys", m.popup.Kind)
	}
	if m.focus.Current() != before {
		t.Errorf("focus moved to %v while a popup was open", m.focus.Current())
	}
	if m.catalog.Index() != 0 {
		t.Errorf("catalog selection moved to %d while a popup was open", m.catalog.Index())
	}

	m, _ = pressKey(t, m, "n")
	if m.popup.Active() {
		t.Error("popup still active after decline")
	}
}

func TestCancelDeclineResumesSameRun(t *testing.T) {
	m := newTestModel(t)
	snap := objectstore.Snapshot{Key: "backups/a.dump", Size: 4096}
	m.popup.ShowConfirm(snap)
	m.popup.AcceptConfirm()
	m.popup.SetProgress(2048, 4096)

	m, _ = pressKey(t, m, "esc")
	if m.popup.Kind != session.PopupConfirmCancel {
		t.Fatalf("popup = %v, want ConfirmCancel after esc", m.popup.Kind)
	}

	m, _ = pressKey(t, m, "n")
	if m.popup.Kind != session.PopupDownloading {
		t.Fatalf("popup = %v, want Downloading after declining the cancel", m.popup.Kind)
	}
	if m.popup.Transferred != 2048 || m.popup.Total != 4096 {
		t.Errorf("progress = %d/%d, want 2048/4096 preserved", m.popup.Transferred, m.popup.Total)
	}
	if m.popup.Snapshot.Key != snap.Key {
		t.Errorf("snapshot = %q, want the in-flight run's snapshot", m.popup.Snapshot.Key)
	}
}

func TestEditCommitAndDiscard(t *testing.T) {
	m := newTestModel(t)
	m.focus.Set(session.FieldBucket)

	m, _ = pressKey(t, m, "enter")
	if !m.editing {
		t.Fatal("expected editing mode after enter on a field")
	}
	if m.input.Value() != "backups" {
		t.Errorf("edit buffer = %q, want current value", m.input.Value())
	}

	// Discard leaves the value alone.
	m.input.SetValue("changed")
	m, _ = pressKey(t, m, "esc")
	if m.editing {
		t.Fatal("still editing after esc")
	}
	if m.store.Bucket != "backups" {
		t.Errorf("bucket = %q, want discard to keep %q", m.store.Bucket, "backups")
	}

	// Commit stores the value and reloads the catalog.
	m, _ = pressKey(t, m, "enter")
	m.input.SetValue("archive")
	m, cmd := pressKey(t, m, "enter")
	if m.store.Bucket != "archive" {
		t.Errorf("bucket = %q, want committed value", m.store.Bucket)
	}
	if !m.loading || cmd == nil {
		t.Error("expected a catalog reload after committing an object-store field")
	}
}

func TestCommitBackendFieldDoesNotReload(t *testing.T) {
	m := newTestModel(t)
	m.focus.Set(session.FieldPgHost)
	m, _ = pressKey(t, m, "enter")
	m.input.SetValue("replica.local")
	m, cmd := pressKey(t, m, "enter")

	if m.targets.Postgres.Host != "replica.local" {
		t.Errorf("host = %q, want committed value", m.targets.Postgres.Host)
	}
	if m.loading || cmd != nil {
		t.Error("backend field commit must not reload the catalog")
	}
}

func TestBadPortCommitShowsError(t *testing.T) {
	m := newTestModel(t)
	m.focus.Set(session.FieldPgPort)
	m, _ = pressKey(t, m, "enter")
	m.input.SetValue("not-a-port")
	m, _ = pressKey(t, m, "enter")

	if m.popup.Kind != session.PopupError {
		t.Fatalf("popup = %v, want Error for a non-numeric port", m.popup.Kind)
	}
	if m.targets.Postgres.Port != 5432 {
		t.Errorf("port = %d, want unchanged", m.targets.Postgres.Port)
	}
}

func TestUpDownMoveCatalogOnList(t *testing.T) {
	m := withCatalog(newTestModel(t), "a", "b", "c")
	m.focus.Set(session.FieldSnapshotList)

	m, _ = pressKey(t, m, "down")
	if m.catalog.Index() != 1 {
		t.Errorf("index = %d, want 1", m.catalog.Index())
	}
	m, _ = pressKey(t, m, "up")
	m, _ = pressKey(t, m, "up")
	if m.catalog.Index() != 2 {
		t.Errorf("index = %d, want wrap to 2", m.catalog.Index())
	}
}

func TestCancelPromptReflectsApplyStart(t *testing.T) {
	m := newTestModel(t)
	m.popup.ShowConfirm(objectstore.Snapshot{Key: "backups/a.dump", Size: 4096})
	m.popup.AcceptConfirm()
	m.events = make(chan restore.Event) // re-arm target; never read in test

	m, _ = pressKey(t, m, "esc")
	if m.popup.Kind != session.PopupConfirmCancel {
		t.Fatalf("popup = %v, want ConfirmCancel after esc", m.popup.Kind)
	}
	if !strings.Contains(m.popupContent(), "untouched") {
		t.Error("cancel prompt during download should say the target is untouched")
	}

	// Apply begins while the prompt is still open; from here the target
	// will be written to, so the prompt must stop promising otherwise.
	next, _ := m.Update(restoreEventMsg{ev: restore.PhaseStarted{Phase: restore.PhaseApply}, ok: true})
	m = next.(sessionModel)
	if m.popup.Kind != session.PopupConfirmCancel {
		t.Fatalf("popup = %v, want ConfirmCancel to survive the apply event", m.popup.Kind)
	}
	got := m.popupContent()
	if strings.Contains(got, "untouched") {
		t.Error("cancel prompt still claims the target is untouched after apply started")
	}
	if !strings.Contains(got, "not rolled back") {
		t.Errorf("cancel prompt = %q, want a note that applied work is not rolled back", got)
	}
}

func TestRestoreEventsDriveThePopup(t *testing.T) {
	m := newTestModel(t)
	m.popup.ShowConfirm(objectstore.Snapshot{Key: "a"})
	m.popup.AcceptConfirm()
	m.events = make(chan restore.Event) // re-arm target; never read in test

	step := func(ev restore.Event) {
		next, _ := m.Update(restoreEventMsg{ev: ev, ok: true})
		m = next.(sessionModel)
	}

	step(restore.Progress{Phase: restore.PhaseDownload, Done: 10, Total: 100})
	if m.popup.Kind != session.PopupDownloading || m.popup.Transferred != 10 {
		t.Fatalf("popup = %v/%d, want Downloading at 10", m.popup.Kind, m.popup.Transferred)
	}

	step(restore.PhaseStarted{Phase: restore.PhaseApply})
	if m.popup.Kind != session.PopupRestoring {
		t.Fatalf("popup = %v, want Restoring once apply starts", m.popup.Kind)
	}

	step(restore.Outcome{Code: restore.OutcomeSuccess, Reason: "done"})
	if m.popup.Kind != session.PopupSuccess {
		t.Fatalf("popup = %v, want Success", m.popup.Kind)
	}

	// Terminal popups dismiss only on an explicit key.
	m, _ = pressKey(t, m, "tab")
	if m.popup.Kind != session.PopupSuccess {
		t.Error("success popup dismissed by a non-dismiss key")
	}
	m, _ = pressKey(t, m, "enter")
	if m.popup.Active() {
		t.Error("success popup not dismissed by enter")
	}
}

func TestFailedOutcomeShowsError(t *testing.T) {
	m := newTestModel(t)
	m.popup.ShowConfirm(objectstore.Snapshot{Key: "a"})
	m.popup.AcceptConfirm()
	m.events = make(chan restore.Event)

	next, _ := m.Update(restoreEventMsg{ev: restore.Outcome{
		Code: restore.OutcomeValidationFailed, Reason: "not a dump",
	}, ok: true})
	m = next.(sessionModel)

	if m.popup.Kind != session.PopupError {
		t.Fatalf("popup = %v, want Error", m.popup.Kind)
	}
	if !strings.Contains(m.popup.Message, "not a dump") {
		t.Errorf("message = %q, want the failure reason", m.popup.Message)
	}
}

func TestCatalogLoadFailureIsInline(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(catalogMsg{err: errString("access denied")})
	m = next.(sessionModel)

	if m.popup.Active() {
		t.Error("catalog failure must not raise a modal popup")
	}
	if !strings.Contains(m.loadErr, "access denied") {
		t.Errorf("loadErr = %q, want the listing error", m.loadErr)
	}
	if !m.catalog.Empty() {
		t.Error("catalog not cleared after a failed load")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
