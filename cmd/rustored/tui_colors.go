package main

import (
	"github.com/charmbracelet/lipgloss"
)

// tc centralizes the shared color styles used across the TUI views.
var tc = struct {
	// Semantic
	Title  lipgloss.Style // panel headings — bold cyan
	Dim    lipgloss.Style // secondary info, labels — gray
	Faint  lipgloss.Style // decorative chrome, help — darker gray
	Cyan   lipgloss.Style // emphasis, selected target
	Green  lipgloss.Style // ok, success
	Yellow lipgloss.Style // warning, pending
	Red    lipgloss.Style // error, destructive

	// Panels
	Label      lipgloss.Style // field labels (fixed width)
	Value      lipgloss.Style // field values
	FocusLabel lipgloss.Style // focused field label
	EditValue  lipgloss.Style // value being edited
	Border     lipgloss.Style // unfocused panel border
	FocusPanel lipgloss.Style // focused panel border

	// Catalog
	Selected lipgloss.Style // selected snapshot row
	Row      lipgloss.Style // normal snapshot row

	// Popup
	Popup        lipgloss.Style // centered modal frame
	PopupTitle   lipgloss.Style
	SpinnerStyle lipgloss.Style

	Help lipgloss.Style // key help bar
}{
	Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
	Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Faint:  lipgloss.NewStyle().Foreground(lipgloss.Color("239")),
	Cyan:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	Green:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	Yellow: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	Red:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

	Label:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18),
	Value:      lipgloss.NewStyle(),
	FocusLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Width(18),
	EditValue:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	Border: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("239")).
		Padding(0, 1),
	FocusPanel: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("6")).
		Padding(0, 1),

	Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	Row:      lipgloss.NewStyle(),

	Popup: lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.Color("6")).
		Padding(1, 3),
	PopupTitle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
	SpinnerStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),

	Help: lipgloss.NewStyle().MarginLeft(2).Foreground(lipgloss.Color("239")),
}
