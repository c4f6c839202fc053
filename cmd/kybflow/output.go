package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/alexcabrera/kybflow/internal/pipe"
)

var (
	colorPurple = lipgloss.Color("141")
	colorText   = lipgloss.Color("252")
	colorMuted  = lipgloss.Color("240")
	colorGreen  = lipgloss.Color("114")
	colorRed    = lipgloss.Color("203")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPurple)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	errorStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)

// wantJSON reports whether output should be JSON: either requested or
// stdout is not a terminal.
func (g *globals) wantJSON() bool {
	return g.json || pipe.IsStdoutPiped()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().
					Foreground(colorPurple).
					Bold(true).
					Padding(0, 1)
			}
			return lipgloss.NewStyle().
				Foreground(colorText).
				Padding(0, 1)
		})
}

func printTable(t *table.Table) {
	fmt.Fprintln(os.Stdout, t.Render())
}

func printTitle(title string) {
	fmt.Println()
	fmt.Println(headerStyle.Render("  " + title))
	fmt.Println()
}

// emit prints v as JSON when wanted, otherwise calls render.
func (g *globals) emit(v any, render func()) error {
	if g.wantJSON() {
		return printJSON(os.Stdout, v)
	}
	render()
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
