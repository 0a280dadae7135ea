package monitor

import (
	"time"

	"github.com/fieldpost/fieldpost/internal/models"
	"github.com/fieldpost/fieldpost/internal/store"
	"github.com/fieldpost/fieldpost/internal/syncconfig"
)

// SyncState is the sync configuration summary shown in the overview panel.
type SyncState struct {
	Enabled    bool
	AutoSync   bool
	Interval   time.Duration
	LastSync   *time.Time
	CloudURL   string
	Configured bool
}

// FetchData retrieves everything the monitor displays. Partial failures
// leave the affected section empty; the first error is carried in the
// message so the view can surface it.
func FetchData(st *store.Store, recentLimit int) RefreshDataMsg {
	msg := RefreshDataMsg{
		Timestamp: time.Now(),
	}

	stats, err := st.Stats()
	if err != nil {
		msg.Err = err
	}
	msg.Stats = stats

	cfg := syncconfig.Load(st.Dir())
	msg.SyncState = SyncState{
		Enabled:  cfg.Enabled(),
		AutoSync: cfg.AutoSync,
		Interval: cfg.Interval(),
		LastSync: cfg.LastSyncTime,
		CloudURL: cfg.ResolvedBaseURL(),
		Configured: cfg.ResolvedAPIKey() != "" &&
			cfg.ResolvedAPISecret() != "" &&
			cfg.ResolvedBaseURL() != "",
	}

	subs, err := st.List(recentLimit)
	if err != nil && msg.Err == nil {
		msg.Err = err
	}
	msg.Submissions = subs

	logs, err := st.RecentLogs(recentLimit)
	if err != nil && msg.Err == nil {
		msg.Err = err
	}
	msg.Logs = logs

	return msg
}

// RefreshDataMsg carries refreshed data
type RefreshDataMsg struct {
	Stats       models.Stats
	SyncState   SyncState
	Submissions []models.Submission
	Logs        []models.LogEntry
	Err         error
	Timestamp   time.Time
}
