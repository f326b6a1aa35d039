package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mind-engage/mindengage-sequencer/internal/analytics"
	"github.com/mind-engage/mindengage-sequencer/internal/engine"
)

var (
	colorAccent = lipgloss.Color("#20B9B4")
	colorWarn   = lipgloss.Color("#F4D03F")
	colorMuted  = lipgloss.Color("#6C7A89")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// renderPreview lays samples out side by side, one row per position.
func renderPreview(samples []engine.Result) string {
	var b strings.Builder
	if len(samples) == 0 {
		return mutedStyle.Render("no samples") + "\n"
	}
	first := samples[0]
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s · %s", orDash(first.TestSetID), first.Strategy)))
	if first.Template != "" {
		b.WriteString(mutedStyle.Render(" (" + string(first.Template) + ")"))
	}
	b.WriteString("\n")

	headers := []string{"#"}
	rows := 0
	for _, s := range samples {
		headers = append(headers, s.SessionID)
		rows = max(rows, len(s.QuestionIDs))
	}
	t := newTable(headers...)
	for i := 0; i < rows; i++ {
		row := []string{strconv.Itoa(i + 1)}
		for _, s := range samples {
			cell := ""
			if i < len(s.QuestionIDs) {
				cell = s.QuestionIDs[i]
			}
			row = append(row, cell)
		}
		t.Row(row...)
	}
	b.WriteString(t.String())
	b.WriteString("\n")

	for _, s := range samples {
		for _, v := range s.Unmet {
			b.WriteString(warnStyle.Render(fmt.Sprintf("%s: unmet %s", s.SessionID, v)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderReport prints one row per question and the summary line.
func renderReport(rep analytics.Report, top int) string {
	var b strings.Builder
	period := "all time"
	if rep.PeriodDays > 0 {
		period = fmt.Sprintf("last %d days", rep.PeriodDays)
	}
	b.WriteString(titleStyle.Render("Exposure report · " + period))
	b.WriteString("\n")

	items := rep.Items
	if top > 0 {
		items = rep.MostExposed(top)
	}
	t := newTable("question", "rate", "category")
	for _, it := range items {
		cat := string(it.Category)
		if it.Rate > analytics.OverExposed {
			cat = warnStyle.Render(cat)
		}
		t.Row(it.QuestionID, fmt.Sprintf("%.3f", it.Rate), cat)
	}
	b.WriteString(t.String())
	b.WriteString("\n")

	s := rep.Summary
	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"%d questions · avg %.3f · min %.3f · max %.3f · over-exposed %d · under-exposed %d",
		s.Count, s.Average, s.Min, s.Max, s.OverExposed, s.UnderExposed)))
	b.WriteString("\n")
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
