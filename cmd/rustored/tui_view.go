package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/analogrithems/rustored/internal/config"
	"github.com/analogrithems/rustored/internal/restore"
	"github.com/analogrithems/rustored/internal/session"
)

// Minimum sizes below which panels stop shrinking.
const (
	minPanelWidth  = 46
	maxValueWidth  = 48
	catalogMinRows = 5
)

func popupBarWidth(termWidth int) int {
	w := termWidth / 2
	if w < 20 {
		w = 20
	}
	if w > 60 {
		w = 60
	}
	return w
}

func (m sessionModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(tc.Title.Render("rustored — browse and restore object-store snapshots"))
	b.WriteString("\n\n")

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.viewObjectStorePanel(),
		m.viewTargetPanel(),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, m.viewCatalogPanel())
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(tc.Help.Render(m.helpText()))
	b.WriteString("\n")

	base := b.String()
	if m.popup.Active() {
		return m.overlayPopup(base)
	}
	return base
}

// --- Panels ---

func (m sessionModel) viewObjectStorePanel() string {
	var b strings.Builder
	b.WriteString(tc.Title.Render("Object Store"))
	b.WriteString("\n")
	for _, f := range session.ObjectStoreFields {
		b.WriteString(m.renderFieldRow(f))
		b.WriteString("\n")
	}
	return m.panelStyle(session.GroupObjectStore).Width(minPanelWidth).Render(strings.TrimRight(b.String(), "\n"))
}

func (m sessionModel) viewTargetPanel() string {
	var b strings.Builder
	b.WriteString(tc.Title.Render("Restore Target"))
	b.WriteString("\n")

	var picker []string
	for i, t := range config.Targets {
		label := fmt.Sprintf("[%d] %s", i+1, t)
		if t == m.focus.Target() {
			label = tc.Cyan.Bold(true).Render(label)
		} else {
			label = tc.Dim.Render(label)
		}
		picker = append(picker, label)
	}
	line := strings.Join(picker, "  ")
	if m.focus.Current() == session.FieldTargetPicker {
		line = "> " + line
	} else {
		line = "  " + line
	}
	b.WriteString(line)
	b.WriteString("\n")

	for _, f := range session.FieldsFor(m.focus.Target()) {
		b.WriteString(m.renderFieldRow(f))
		b.WriteString("\n")
	}

	style := m.panelStyle(session.GroupBackend)
	if m.focus.Current() == session.FieldTargetPicker {
		style = tc.FocusPanel
	}
	return style.Width(minPanelWidth).Render(strings.TrimRight(b.String(), "\n"))
}

func (m sessionModel) viewCatalogPanel() string {
	var b strings.Builder
	title := fmt.Sprintf("Snapshots (%d)", m.catalog.Len())
	if m.store.Prefix != "" {
		title += "  " + tc.Dim.Render("prefix: "+m.store.Prefix)
	}
	b.WriteString(tc.Title.Render(title))
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(fmt.Sprintf("%s loading...\n", m.spin.View()))
	case m.loadErr != "":
		b.WriteString(tc.Red.Render("cannot list snapshots"))
		b.WriteString("\n")
		b.WriteString(tc.Dim.Render(truncate(m.loadErr, 60)))
		b.WriteString("\n")
	case m.catalog.Empty():
		b.WriteString(tc.Dim.Render("no snapshots found"))
		b.WriteString("\n")
	default:
		rows := m.visibleCatalogRows()
		for _, row := range rows {
			b.WriteString(row)
			b.WriteString("\n")
		}
	}
	return m.panelStyle(session.GroupCatalog).Render(strings.TrimRight(b.String(), "\n"))
}

// visibleCatalogRows windows the listing around the selection so the
// cursor stays on screen for long catalogs.
func (m sessionModel) visibleCatalogRows() []string {
	height := m.termHeight - 10
	if height < catalogMinRows {
		height = catalogMinRows
	}
	snaps := m.catalog.Snapshots()
	start := 0
	if m.catalog.Index() >= height {
		start = m.catalog.Index() - height + 1
	}
	end := start + height
	if end > len(snaps) {
		end = len(snaps)
	}

	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		s := snaps[i]
		line := fmt.Sprintf("%s  %8s  %s",
			s.LastModified.Format("2006-01-02 15:04"),
			humanize.IBytes(uint64(s.Size)),
			truncate(s.Key, maxValueWidth),
		)
		if i == m.catalog.Index() {
			rows = append(rows, tc.Selected.Render("> "+line))
		} else {
			rows = append(rows, tc.Row.Render("  "+line))
		}
	}
	return rows
}

// renderFieldRow renders one label/value pair, showing the edit buffer on
// the focused field and masking sensitive values.
func (m sessionModel) renderFieldRow(f session.Field) string {
	focused := m.focus.Current() == f
	label := tc.Label.Render(f.String())
	if focused {
		label = tc.FocusLabel.Render(f.String())
	}

	if focused && m.editing {
		return label + tc.EditValue.Render(m.input.View())
	}

	value := m.displayValue(f)
	if value == "" {
		value = tc.Faint.Render("(unset)")
	} else if f.Sensitive() {
		value = config.MaskSecret(value)
	}
	return label + truncate(value, maxValueWidth)
}

// displayValue covers the boolean fields fieldValue does not edit.
func (m sessionModel) displayValue(f session.Field) string {
	switch f {
	case session.FieldPathStyle:
		return boolLabel(m.store.PathStyle)
	case session.FieldPgSSL:
		m.targets.Ensure(config.TargetPostgres)
		return boolLabel(m.targets.Postgres.UseSSL)
	}
	return m.fieldValue(f)
}

func boolLabel(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (m sessionModel) panelStyle(g session.Group) lipgloss.Style {
	if session.GroupOf(m.focus.Current()) == g && !m.popup.Active() {
		return tc.FocusPanel
	}
	return tc.Border
}

// --- Popup ---

func (m sessionModel) overlayPopup(base string) string {
	content := m.popupContent()
	box := tc.Popup.Render(content)
	if m.termWidth == 0 || m.termHeight == 0 {
		return base + "\n" + box
	}
	return lipgloss.Place(m.termWidth, m.termHeight, lipgloss.Center, lipgloss.Center, box)
}

func (m sessionModel) popupContent() string {
	var b strings.Builder
	switch m.popup.Kind {
	case session.PopupConfirmRestore:
		b.WriteString(tc.PopupTitle.Render("Restore snapshot?"))
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "  %s\n", m.popup.Snapshot.Key)
		fmt.Fprintf(&b, "  %s, %s\n\n",
			humanize.IBytes(uint64(m.popup.Snapshot.Size)),
			m.popup.Snapshot.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "  Target: %s\n\n", m.focus.Target())
		b.WriteString(tc.Help.Render("y restore  n cancel"))

	case session.PopupDownloading:
		b.WriteString(tc.PopupTitle.Render("Downloading"))
		b.WriteString("\n\n")
		b.WriteString(m.renderTransfer())
		b.WriteString("\n\n")
		b.WriteString(tc.Help.Render("esc cancel"))

	case session.PopupConfirmCancel:
		b.WriteString(tc.PopupTitle.Render("Cancel restore?"))
		b.WriteString("\n\n")
		if m.phase >= restore.PhaseApply {
			b.WriteString("  Writing to the target has started; work already applied is not rolled back.\n\n")
		} else {
			b.WriteString("  The download will stop; the target is untouched.\n\n")
		}
		b.WriteString(tc.Help.Render("y abort  n keep going"))

	case session.PopupRestoring:
		b.WriteString(tc.PopupTitle.Render(fmt.Sprintf("Restoring — %s", m.phase)))
		b.WriteString("\n\n")
		b.WriteString(m.renderTransfer())

	case session.PopupTestResult:
		b.WriteString(tc.PopupTitle.Render(m.popup.TargetLabel + " connection test"))
		b.WriteString("\n\n")
		if m.popup.TestOK {
			b.WriteString("  " + tc.Green.Render(m.popup.Message))
		} else {
			b.WriteString("  " + tc.Red.Render(truncate(m.popup.Message, 60)))
		}
		b.WriteString("\n\n")
		b.WriteString(tc.Help.Render("enter dismiss"))

	case session.PopupError:
		b.WriteString(tc.PopupTitle.Render(tc.Red.Render("Restore failed")))
		b.WriteString("\n\n")
		b.WriteString("  " + tc.Red.Render(truncate(m.popup.Message, 70)))
		b.WriteString("\n\n")
		b.WriteString(tc.Help.Render("enter dismiss"))

	case session.PopupSuccess:
		b.WriteString(tc.PopupTitle.Render(tc.Green.Render("Restore complete")))
		b.WriteString("\n\n")
		b.WriteString("  " + truncate(m.popup.Message, 70))
		b.WriteString("\n\n")
		b.WriteString(tc.Help.Render("enter dismiss"))
	}
	return b.String()
}

// renderTransfer shows a determinate bar when the total is known, and a
// spinner with a byte counter when it is not.
func (m sessionModel) renderTransfer() string {
	if m.popup.Total > 0 {
		pct := float64(m.popup.Transferred) / float64(m.popup.Total)
		line := m.bar.ViewAs(pct)
		if m.detail != "" {
			line += "\n  " + tc.Dim.Render(m.detail)
		}
		return line
	}
	line := fmt.Sprintf("  %s %s", m.spin.View(), humanize.IBytes(uint64(m.popup.Transferred)))
	if m.detail != "" {
		line += "  " + tc.Dim.Render(m.detail)
	}
	return line
}

func (m sessionModel) helpText() string {
	if m.editing {
		return "enter commit  esc discard"
	}
	if m.focus.Current() == session.FieldSnapshotList {
		return "↑↓ select  enter restore  tab panel  1/2/3 target  t/p test  r reload  q quit"
	}
	return "↑↓ field  enter edit  tab panel  1/2/3 target  t/p test  r reload  q quit"
}

// truncate shortens s to width terminal cells, appending an ellipsis.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
