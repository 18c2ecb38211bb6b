// Package ui holds the terminal output helpers for the non-interactive
// commands. The TUI renders with lipgloss and never goes through here.
package ui

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/analogrithems/rustored/internal/objectstore"
)

// IsTTY returns true if stdout is a terminal.
func IsTTY() bool {
	fi, _ := os.Stdout.Stat()
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// Success prints a success message.
func Success(format string, args ...interface{}) {
	pterm.Success.Printfln(format, args...)
}

// Error prints an error message.
func Error(format string, args ...interface{}) {
	pterm.Error.Printfln(format, args...)
}

// Info prints an info message.
func Info(format string, args ...interface{}) {
	pterm.Info.Printfln(format, args...)
}

// SnapshotTable renders the snapshot listing as a table with a totals
// line. Plain rows without chrome when stdout is not a terminal, so the
// output stays pipeable.
func SnapshotTable(snaps []objectstore.Snapshot) error {
	var total int64
	for _, s := range snaps {
		total += s.Size
	}

	if !IsTTY() {
		for _, s := range snaps {
			fmt.Printf("%s\t%d\t%s\n", s.Key, s.Size, s.LastModified.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	}

	rows := pterm.TableData{{"KEY", "SIZE", "LAST MODIFIED"}}
	for _, s := range snaps {
		rows = append(rows, []string{
			s.Key,
			humanize.IBytes(uint64(s.Size)),
			s.LastModified.Format("2006-01-02 15:04:05"),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	Success("%d snapshot(s), %s total", len(snaps), humanize.IBytes(uint64(total)))
	return nil
}
