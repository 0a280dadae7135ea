package monitor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fieldpost/fieldpost/internal/models"
	"github.com/fieldpost/fieldpost/internal/output"
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.Err != nil {
		return m.renderError()
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	// Overview is fixed-height; submissions and logs split the rest,
	// submissions getting the larger share. One line stays for the footer.
	availableHeight := m.Height - 1
	overviewHeight := 9
	rest := availableHeight - overviewHeight
	subHeight := rest * 3 / 5
	logHeight := rest - subHeight

	overview := m.renderOverviewPanel(overviewHeight)
	submissions := m.renderSubmissionsPanel(subHeight)
	logs := m.renderLogsPanel(logHeight)

	panels := lipgloss.JoinVertical(lipgloss.Left, overview, submissions, logs)
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, panels, footer)
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder

	s.WriteString("fieldpost monitor (resize for full view)\n\n")
	s.WriteString(fmt.Sprintf("Total: %d | Today: %d | Unsynced: %d\n",
		m.Stats.Total, m.Stats.Today, m.Stats.Unsynced))
	s.WriteString(fmt.Sprintf("Sync: %s\n", formatOnOff(m.SyncState.Enabled)))
	if m.Syncing {
		s.WriteString(m.Spinner.View() + " syncing...\n")
	}
	s.WriteString("\nq:quit r:refresh s:sync ?:help")

	return s.String()
}

// renderError renders an error message
func (m Model) renderError() string {
	return fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.Err)
}

// renderOverviewPanel renders store stats and sync state side by side
func (m Model) renderOverviewPanel(height int) string {
	colWidth := (m.Width - 8) / 2

	left := m.renderStatsColumn(colWidth)
	right := m.renderSyncColumn(colWidth)

	content := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(colWidth).Render(left),
		lipgloss.NewStyle().Width(colWidth).Render(right),
	)

	return m.wrapPanel("OVERVIEW", content, height, PanelOverview)
}

func (m Model) renderStatsColumn(width int) string {
	var s strings.Builder
	st := m.Stats

	unsynced := statValueStyle.Render(fmt.Sprintf("%d", st.Unsynced))
	if st.Unsynced > 0 {
		unsynced = unsyncedAlertStyle.Render(fmt.Sprintf(" %d ", st.Unsynced))
	}

	s.WriteString(fmt.Sprintf("Submissions  %s total, %s today\n",
		statValueStyle.Render(fmt.Sprintf("%d", st.Total)),
		statValueStyle.Render(fmt.Sprintf("%d", st.Today))))
	s.WriteString(fmt.Sprintf("Unsynced     %s\n", unsynced))

	if len(st.ByFormType) > 0 {
		s.WriteString(subtleStyle.Render("By form:") + " ")
		s.WriteString(truncateString(formatFormCounts(st.ByFormType), width-9))
		s.WriteString("\n")
	}

	return s.String()
}

func (m Model) renderSyncColumn(width int) string {
	var s strings.Builder
	ss := m.SyncState

	s.WriteString(fmt.Sprintf("Sync %s  auto %s (every %s)\n",
		formatOnOff(ss.Enabled), formatOnOff(ss.AutoSync), ss.Interval))

	cloud := ss.CloudURL
	if cloud == "" {
		cloud = offStyle.Render("no cloud url")
	}
	if !ss.Configured {
		cloud += " " + pendingStyle.Render("(credentials missing)")
	}
	s.WriteString(truncateString("Cloud  "+cloud, width))
	s.WriteString("\n")

	last := "never"
	if ss.LastSync != nil {
		last = output.FormatTimeAgo(*ss.LastSync)
	}
	s.WriteString(fmt.Sprintf("Last sync  %s\n", timestampStyle.Render(last)))

	if line := m.lastCycleLine(); line != "" {
		s.WriteString(truncateString(line, width))
		s.WriteString("\n")
	}

	return s.String()
}

// lastCycleLine summarizes the most recent manual cycle, if any.
func (m Model) lastCycleLine() string {
	if m.SyncErr != nil {
		return levelStyles[models.LogError].Render(fmt.Sprintf("sync: %v", m.SyncErr))
	}
	if m.LastReport == nil {
		return ""
	}
	r := m.LastReport
	if r.Skipped != "" {
		return subtleStyle.Render(fmt.Sprintf("last cycle: skipped (%s)", r.Skipped))
	}
	line := fmt.Sprintf("last cycle: %d/%d delivered", r.Success, r.Total)
	if r.Success < r.Total {
		return pendingStyle.Render(line)
	}
	return syncedStyle.Render(line)
}

// renderSubmissionsPanel renders the recent submissions list (Panel 2)
func (m Model) renderSubmissionsPanel(height int) string {
	var content strings.Builder

	subs := m.Submissions
	if len(subs) == 0 {
		content.WriteString(subtleStyle.Render("No submissions yet"))
	} else {
		offset := m.clampOffset(PanelSubmissions, len(subs), height-3)
		visible := visibleItems(len(subs), offset, height-3)

		for i := offset; i < offset+visible; i++ {
			content.WriteString(m.formatSubmissionRow(&subs[i]))
			content.WriteString("\n")
		}
	}

	return m.wrapPanel("RECENT SUBMISSIONS", content.String(), height, PanelSubmissions)
}

// renderLogsPanel renders the system log feed (Panel 3)
func (m Model) renderLogsPanel(height int) string {
	var content strings.Builder

	logs := m.Logs
	if len(logs) == 0 {
		content.WriteString(subtleStyle.Render("No system log entries"))
	} else {
		offset := m.clampOffset(PanelLogs, len(logs), height-3)
		visible := visibleItems(len(logs), offset, height-3)

		for i := offset; i < offset+visible; i++ {
			content.WriteString(m.formatLogRow(logs[i]))
			content.WriteString("\n")
		}
	}

	return m.wrapPanel("SYSTEM LOG", content.String(), height, PanelLogs)
}

// renderFooter renders the key hints line
func (m Model) renderFooter() string {
	keys := helpStyle.Render("q:quit  tab:panel  j/k:scroll  r:refresh  s:sync  ?:help")

	syncing := ""
	if m.Syncing {
		syncing = m.Spinner.View() + spinnerStyle.Render("syncing ")
	}

	refresh := timestampStyle.Render(fmt.Sprintf("Last: %s", m.LastRefresh.Format("15:04:05")))

	padding := m.Width - lipgloss.Width(keys) - lipgloss.Width(syncing) - lipgloss.Width(refresh) - 2
	if padding < 0 {
		padding = 0
	}

	return fmt.Sprintf(" %s%s%s%s", keys, strings.Repeat(" ", padding), syncing, refresh)
}

// renderHelp renders the help overlay
func (m Model) renderHelp() string {
	help := `
FIELDPOST MONITOR - Key Bindings

NAVIGATION:
  Tab / Shift+Tab   Switch between panels
  1 / 2 / 3         Jump to panel
  j / k, ↓ / ↑      Scroll active panel

ACTIONS:
  s                 Run one sync cycle now
  r                 Force refresh
  q / Ctrl+C        Quit

Press ? to close help
`
	return helpStyle.Render(help)
}

// wrapPanel wraps content in a panel with title and border
func (m Model) wrapPanel(title, content string, height int, panel Panel) string {
	style := panelStyle
	if m.ActivePanel == panel {
		style = activePanelStyle
	}

	titleStr := panelTitleStyle.Render(title)

	contentWidth := m.Width - 4

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	contentHeight := height - 3
	if contentHeight < 1 {
		contentHeight = 1
	}

	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	if len(lines) > contentHeight {
		lines = lines[:contentHeight]
	}

	for i, line := range lines {
		if lipgloss.Width(line) > contentWidth {
			lines[i] = truncateString(line, contentWidth)
		}
	}

	body := strings.Join(lines, "\n")
	inner := lipgloss.JoinVertical(lipgloss.Left, titleStr, body)

	return style.Width(m.Width - 2).Render(inner)
}

// formatSubmissionRow formats one submission line for the panel
func (m Model) formatSubmissionRow(sub *models.Submission) string {
	preview := ""
	if len(sub.Data) > 0 {
		preview = subtleStyle.Render(truncateString(
			fmt.Sprintf("%s=%s", sub.Data[0].Name, sub.Data[0].Value), 30))
	}

	attach := ""
	if n := len(sub.Files); n > 0 {
		attach = subtleStyle.Render(fmt.Sprintf("+%d file(s)", n))
	}

	return strings.TrimRight(fmt.Sprintf("%s %s %s %-10s %s %s",
		formatSynced(sub.Synced),
		titleStyle.Render(fmt.Sprintf("#%-4d", sub.ID)),
		timestampStyle.Render(sub.CreatedAt.Local().Format("Jan 02 15:04")),
		truncateString(sub.FormType, 10),
		preview,
		attach), " ")
}

// formatLogRow formats one system log line for the panel
func (m Model) formatLogRow(e models.LogEntry) string {
	return fmt.Sprintf("%s %s %s",
		timestampStyle.Render(e.CreatedAt.Local().Format("15:04:05")),
		formatLevel(fmt.Sprintf("%-7s", e.Level)),
		truncateString(fmt.Sprintf("%s: %s", e.Source, e.Message), m.Width-24))
}

// formatFormCounts renders per-form-type counts in stable order
func formatFormCounts(counts map[string]int) string {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s %d", t, counts[t]))
	}
	return strings.Join(parts, ", ")
}

// clampOffset keeps the scroll offset inside the list so scrolling past
// the end parks on the last page.
func (m Model) clampOffset(panel Panel, total, height int) int {
	offset := m.ScrollOffset[panel]
	max := total - height
	if max < 0 {
		max = 0
	}
	if offset > max {
		offset = max
	}
	return offset
}

// visibleItems calculates how many items can be shown given scroll offset and height
func visibleItems(total, offset, height int) int {
	remaining := total - offset
	if remaining > height {
		return height
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// truncateString truncates a string to maxLen with ellipsis
func truncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return s
	}
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	if len(s) > maxLen-3 {
		return s[:maxLen-3] + "..."
	}
	return s
}
