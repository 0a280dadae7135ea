// Package output provides styled terminal output helpers (success, error,
// warning, submission formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fieldpost/fieldpost/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	syncedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	levelStyles  = map[string]lipgloss.Style{
		models.LogInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.LogWarning: warningStyle,
		models.LogError:   errorStyle,
	}
)

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...any) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeDatabaseError = "database_error"
	ErrCodeNotConfigured = "not_configured"
	ErrCodeSyncError     = "sync_error"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// SyncBadge returns a colored sync-state marker, e.g. "✓ synced" or
// "○ pending".
func SyncBadge(synced bool) string {
	if synced {
		return syncedStyle.Render("✓ synced")
	}
	return pendingStyle.Render("○ pending")
}

// FormatSubmissionLine formats one submission as a single list row.
// e.g. `#12  checkin  3 fields, 1 file (24 KB)  5m ago  ✓ synced`
func FormatSubmissionLine(sub *models.Submission) string {
	parts := []string{
		titleStyle.Render(fmt.Sprintf("#%d", sub.ID)),
		sub.FormType,
		contentSummary(sub),
		subtleStyle.Render(FormatTimeAgo(sub.CreatedAt)),
		SyncBadge(sub.Synced),
	}
	return strings.Join(parts, "  ")
}

func contentSummary(sub *models.Submission) string {
	s := plural(len(sub.Data), "field")
	if len(sub.Files) == 0 {
		return s
	}
	var bytes int64
	for _, f := range sub.Files {
		bytes += f.SizeBytes
	}
	return fmt.Sprintf("%s, %s (%s)", s, plural(len(sub.Files), "file"), FormatBytes(bytes))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// FormatLogLine formats a system log entry for the logs command.
func FormatLogLine(e models.LogEntry) string {
	level := e.Level
	if style, ok := levelStyles[e.Level]; ok {
		level = style.Render(e.Level)
	}
	return fmt.Sprintf("%s  %-18s %s: %s",
		subtleStyle.Render(e.CreatedAt.Local().Format("2006-01-02 15:04:05")),
		level, e.Source, e.Message)
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// FormatBytes renders a byte count in the nearest sensible unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nBY FORM TYPE:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}
