package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"logincheck/internal/flow"
	"logincheck/internal/regression"
	"logincheck/internal/store"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#8BC34A")
	colorFailure = lipgloss.Color("#e53935")
	colorInfo    = lipgloss.Color("#2196F3")
	colorMuted   = lipgloss.Color("#8a94a6")

	passStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorFailure)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorInfo)
	labelStyle = lipgloss.NewStyle().Bold(true).Width(12)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	headStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

// table renders aligned columns for terminal output.
type table struct {
	title   string
	headers []string
	rows    [][]string
}

func newTable(title string, headers ...string) *table {
	return &table{title: title, headers: headers}
}

func (t *table) addRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *table) String() string {
	if len(t.rows) == 0 {
		return ""
	}

	var sb strings.Builder
	if t.title != "" {
		sb.WriteString(titleStyle.Render(t.title))
		sb.WriteString("\n")
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	// Width includes the cell padding.
	for i := range widths {
		widths[i] += 2
	}

	sep := mutedStyle.Render("|")
	for i, h := range t.headers {
		sb.WriteString(headStyle.Width(widths[i]).Render(h))
		if i < len(t.headers)-1 {
			sb.WriteString(sep)
		}
	}
	sb.WriteString("\n")

	total := len(t.headers) - 1
	for _, w := range widths {
		total += w
	}
	sb.WriteString(mutedStyle.Render(strings.Repeat("-", total)) + "\n")

	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			sb.WriteString(cellStyle.Width(widths[i]).Render(cell))
			if i < len(row)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func outcomeBadge(passed bool) string {
	if passed {
		return passStyle.Render("PASS")
	}
	return failStyle.Render("FAIL")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}

func field(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	sb.WriteString("  " + labelStyle.Render(label) + value + "\n")
}

// renderResult prints the summary of a run that just finished.
func renderResult(res *flow.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s  login verification  %s\n",
		outcomeBadge(res.Passed()),
		mutedStyle.Render("("+formatDuration(res.Duration())+")")))

	field(&sb, "run", res.ID)
	field(&sb, "target", res.TargetURL)
	field(&sb, "user", res.Username)
	field(&sb, "final url", res.FinalURL)
	if res.Err != nil {
		field(&sb, "kind", res.ErrorKind())
		field(&sb, "error", res.Err.Error())
	}
	field(&sb, "screenshot", res.Screenshot)
	sb.WriteString("\n")

	t := newTable("", "#", "STEP", "DURATION", "STATUS")
	for i, st := range res.Steps {
		t.addRow(fmt.Sprint(i+1), st.Name, formatDuration(st.Duration), stepStatus(st.Error))
	}
	sb.WriteString(t.String())
	return sb.String()
}

func stepStatus(errMsg string) string {
	if errMsg == "" {
		return passStyle.Render("ok")
	}
	return failStyle.Render("failed")
}

// renderHistory prints recent runs and the overall totals.
func renderHistory(runs []store.Run, stats *store.Stats) string {
	var sb strings.Builder

	t := newTable("Recent runs", "ID", "STARTED", "RESULT", "KIND", "DURATION", "TARGET")
	for _, r := range runs {
		t.addRow(
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			outcomeBadge(r.Passed()),
			r.ErrorKind,
			formatDuration(r.Duration),
			r.TargetURL,
		)
	}
	sb.WriteString(t.String())

	if stats != nil {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s %d total, %s %d, %s %d, avg %s\n",
			labelStyle.UnsetWidth().Render("Totals:"),
			stats.Total,
			passStyle.Render("passed"), stats.Passed,
			failStyle.Render("failed"), stats.Failed,
			formatDuration(time.Duration(stats.AvgDurationMs)*time.Millisecond)))
		kinds := make([]string, 0, len(stats.ByKind))
		for kind := range stats.ByKind {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			sb.WriteString(mutedStyle.Render(fmt.Sprintf("  %s: %d", kind, stats.ByKind[kind])) + "\n")
		}
	}
	return sb.String()
}

// renderRun prints one stored run with its steps.
func renderRun(r *store.Run) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s  %s  %s\n",
		outcomeBadge(r.Passed()),
		r.ID,
		mutedStyle.Render("("+formatDuration(r.Duration)+")")))

	field(&sb, "started", r.StartedAt.Local().Format(time.RFC3339))
	field(&sb, "target", r.TargetURL)
	field(&sb, "user", r.Username)
	field(&sb, "headless", fmt.Sprint(r.Headless))
	field(&sb, "final url", r.FinalURL)
	field(&sb, "kind", r.ErrorKind)
	field(&sb, "error", r.ErrorMessage)
	field(&sb, "screenshot", r.Screenshot)
	sb.WriteString("\n")

	t := newTable("Steps", "#", "STEP", "DURATION", "ERROR")
	for _, st := range r.Steps {
		t.addRow(fmt.Sprint(st.Seq+1), st.Name, formatDuration(st.Duration), st.Error)
	}
	sb.WriteString(t.String())
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// renderBattery prints one row per scenario.
func renderBattery(results []regression.Result) string {
	if len(results) == 0 {
		return "No scenarios ran.\n"
	}
	t := newTable("Battery", "SCENARIO", "EXPECTED", "ACTUAL", "RESULT", "DURATION")
	for _, r := range results {
		t.addRow(
			r.TaskID,
			r.Expected,
			r.Actual,
			outcomeBadge(r.Success),
			formatDuration(time.Duration(r.DurationMs)*time.Millisecond),
		)
	}
	failed := regression.Failed(results)
	summary := passStyle.Render(fmt.Sprintf("%d/%d matched", len(results)-failed, len(results)))
	if failed > 0 {
		summary = failStyle.Render(fmt.Sprintf("%d/%d matched", len(results)-failed, len(results)))
	}
	return t.String() + "\n" + summary + "\n"
}
