package session

import (
	"github.com/analogrithems/rustored/internal/objectstore"
)

// PopupKind enumerates the modal overlays. Exactly one is active at a time.
type PopupKind int

const (
	PopupHidden PopupKind = iota
	PopupConfirmRestore
	PopupDownloading
	PopupConfirmCancel
	PopupRestoring
	PopupTestResult
	PopupError
	PopupSuccess
)

func (k PopupKind) String() string {
	switch k {
	case PopupHidden:
		return "Hidden"
	case PopupConfirmRestore:
		return "ConfirmRestore"
	case PopupDownloading:
		return "Downloading"
	case PopupConfirmCancel:
		return "ConfirmCancel"
	case PopupRestoring:
		return "Restoring"
	case PopupTestResult:
		return "TestResult"
	case PopupError:
		return "Error"
	case PopupSuccess:
		return "Success"
	}
	return "Unknown"
}

// Popup is the modal state machine gating destructive actions. Every
// transition method checks the current kind and is a no-op when called in
// the wrong state, so stray events cannot corrupt the machine.
type Popup struct {
	Kind        PopupKind
	Snapshot    objectstore.Snapshot
	Transferred int64
	Total       int64 // -1 when unknown
	Message     string
	TargetLabel string
	TestOK      bool
}

// Active reports whether a modal overlay is being shown.
func (p *Popup) Active() bool { return p.Kind != PopupHidden }

// Blocking reports whether the popup suppresses normal navigation input.
func (p *Popup) Blocking() bool { return p.Active() }

// RestoreInFlight reports whether a restore run owns the catalog and the
// active target configuration. Catalog reloads and target edits are
// refused while this holds.
func (p *Popup) RestoreInFlight() bool {
	switch p.Kind {
	case PopupDownloading, PopupConfirmCancel, PopupRestoring:
		return true
	}
	return false
}

// ShowConfirm asks the operator to confirm restoring snap.
// Hidden → ConfirmRestore.
func (p *Popup) ShowConfirm(snap objectstore.Snapshot) bool {
	if p.Kind != PopupHidden {
		return false
	}
	*p = Popup{Kind: PopupConfirmRestore, Snapshot: snap}
	return true
}

// AcceptConfirm starts the transfer. ConfirmRestore → Downloading.
func (p *Popup) AcceptConfirm() bool {
	if p.Kind != PopupConfirmRestore {
		return false
	}
	p.Kind = PopupDownloading
	p.Transferred = 0
	p.Total = -1
	return true
}

// DeclineConfirm dismisses the confirmation. ConfirmRestore → Hidden.
func (p *Popup) DeclineConfirm() bool {
	if p.Kind != PopupConfirmRestore {
		return false
	}
	*p = Popup{}
	return true
}

// RequestCancel asks whether to abort the transfer.
// Downloading → ConfirmCancel.
func (p *Popup) RequestCancel() bool {
	if p.Kind != PopupDownloading {
		return false
	}
	p.Kind = PopupConfirmCancel
	return true
}

// DeclineCancel resumes observing the same run. ConfirmCancel → Downloading.
func (p *Popup) DeclineCancel() bool {
	if p.Kind != PopupConfirmCancel {
		return false
	}
	p.Kind = PopupDownloading
	return true
}

// AcceptCancel confirms the abort; the caller signals the orchestrator.
// ConfirmCancel → Hidden.
func (p *Popup) AcceptCancel() bool {
	if p.Kind != PopupConfirmCancel {
		return false
	}
	*p = Popup{}
	return true
}

// SetProgress updates the embedded transfer counters. It never changes the
// popup kind, so progress events cannot race state transitions.
func (p *Popup) SetProgress(transferred, total int64) {
	switch p.Kind {
	case PopupDownloading, PopupConfirmCancel, PopupRestoring:
		p.Transferred = transferred
		p.Total = total
	}
}

// BeginRestore marks the transfer complete and the apply phase started.
// Downloading → Restoring.
func (p *Popup) BeginRestore() bool {
	if p.Kind != PopupDownloading {
		return false
	}
	p.Kind = PopupRestoring
	p.Transferred = 0
	p.Total = -1
	return true
}

// Fail surfaces a failure. Downloading | ConfirmCancel | Restoring → Error.
// ConfirmCancel is included so a run that dies while the cancel prompt is
// open still reports its failure instead of leaving a stale prompt.
func (p *Popup) Fail(msg string) bool {
	switch p.Kind {
	case PopupDownloading, PopupConfirmCancel, PopupRestoring:
		*p = Popup{Kind: PopupError, Message: msg}
		return true
	}
	return false
}

// Succeed reports a completed restore. Restoring → Success.
func (p *Popup) Succeed(msg string) bool {
	if p.Kind != PopupRestoring {
		return false
	}
	*p = Popup{Kind: PopupSuccess, Message: msg}
	return true
}

// ShowError surfaces an immediate error outside a run (config invalid,
// busy, catalog load failure). Hidden → Error.
func (p *Popup) ShowError(msg string) bool {
	if p.Kind != PopupHidden {
		return false
	}
	*p = Popup{Kind: PopupError, Message: msg}
	return true
}

// ShowTestResult reports a connection-test outcome. Hidden → TestResult.
func (p *Popup) ShowTestResult(target, msg string, ok bool) bool {
	if p.Kind != PopupHidden {
		return false
	}
	*p = Popup{Kind: PopupTestResult, TargetLabel: target, Message: msg, TestOK: ok}
	return true
}

// Dismiss acknowledges a terminal popup. Error | Success | TestResult →
// Hidden. Terminal popups are never auto-dismissed: a failure stays on
// screen until the operator has read it.
func (p *Popup) Dismiss() bool {
	switch p.Kind {
	case PopupError, PopupSuccess, PopupTestResult:
		*p = Popup{}
		return true
	}
	return false
}
