package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fieldpost/fieldpost/internal/models"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")
	infoColor    = lipgloss.Color("45")

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	statValueStyle = lipgloss.NewStyle().Bold(true).Foreground(infoColor)
	spinnerStyle   = lipgloss.NewStyle().Foreground(primaryColor)

	// Sync state markers
	syncedStyle  = lipgloss.NewStyle().Foreground(successColor)
	pendingStyle = lipgloss.NewStyle().Foreground(warningColor)
	offStyle     = lipgloss.NewStyle().Foreground(mutedColor)

	// Level styles for the system log panel
	levelStyles = map[string]lipgloss.Style{
		models.LogInfo:    lipgloss.NewStyle().Foreground(infoColor),
		models.LogWarning: lipgloss.NewStyle().Foreground(warningColor),
		models.LogError:   lipgloss.NewStyle().Foreground(errorColor),
	}

	// Prominent style for the unsynced counter when work is pending
	unsyncedAlertStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("0")).
				Background(warningColor)
)

// formatLevel renders a log level with color
func formatLevel(level string) string {
	style, ok := levelStyles[level]
	if !ok {
		return level
	}
	return style.Render(level)
}

// formatSynced renders a sync marker for one submission row
func formatSynced(synced bool) string {
	if synced {
		return syncedStyle.Render("✓")
	}
	return pendingStyle.Render("○")
}

// formatOnOff renders an enabled/disabled marker
func formatOnOff(on bool) string {
	if on {
		return syncedStyle.Render("on")
	}
	return offStyle.Render("off")
}
