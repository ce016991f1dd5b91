package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/uniconv/uniconv/pkg/etl"
	"github.com/uniconv/uniconv/pkg/executor"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	summaryStyle = lipgloss.NewStyle().MarginTop(1)
)

// renderSummary builds the human-readable stage-by-stage result table shown
// after a pipeline run, used when --json is not set.
func renderSummary(r executor.Result) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("uniconv pipeline"))
	b.WriteString("\n")

	for _, sr := range r.StageResults {
		b.WriteString(statusGlyph(sr.Status))
		b.WriteString(" ")
		b.WriteString(fmt.Sprintf("stage %d: %s", sr.StageIndex, sr.Target))
		if sr.PluginUsed != "" {
			b.WriteString(dimStyle.Render(fmt.Sprintf(" (%s)", sr.PluginUsed)))
		}
		if sr.Error != "" {
			b.WriteString("\n    " + errorStyle.Render(sr.Error))
		}
		b.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		b.WriteString(dimStyle.Render("warnings:") + "\n")
		for _, w := range r.Warnings {
			b.WriteString(dimStyle.Render("  - "+w) + "\n")
		}
	}

	footer := fmt.Sprintf("%d output(s) in %s", len(r.FinalOutputs), r.TotalDuration.Round(time.Millisecond))
	for _, out := range r.FinalOutputs {
		footer += "\n  " + out
	}
	if r.Error != "" {
		footer += "\n" + errorStyle.Render(r.Error)
	}
	b.WriteString(summaryStyle.Render(footer))

	return b.String()
}

func statusGlyph(s etl.Status) string {
	switch s {
	case etl.StatusSuccess:
		return successStyle.Render("✓")
	case etl.StatusSkipped:
		return skippedStyle.Render("-")
	default:
		return errorStyle.Render("✗")
	}
}
