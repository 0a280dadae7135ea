package models

import (
	"time"
)

// DefaultFormType is assigned when a submission does not declare a form type
const DefaultFormType = "general"

// Submission is one collected form submission. Data and Files round-trip
// through JSON columns in the store.
type Submission struct {
	ID        int64      `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	FormType  string     `json:"form_type"`
	Data      FormData   `json:"data"`
	Files     []FileRef  `json:"files,omitempty"`
	SourceIP  string     `json:"source_ip,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	Synced    bool       `json:"synced"`
	SyncedAt  *time.Time `json:"synced_at,omitempty"`
}

// FileRef describes one stored attachment. Path is relative to the data
// directory so the database stays valid if the directory is moved.
type FileRef struct {
	OriginalName string `json:"original_name"`
	StoredName   string `json:"saved_name"`
	Path         string `json:"path"`
	SizeBytes    int64  `json:"size"`
}

// Ext returns the lowercase file extension of the original name, including
// the dot, or "" when the name has none.
func (f FileRef) Ext() string {
	for i := len(f.OriginalName) - 1; i >= 0; i-- {
		switch f.OriginalName[i] {
		case '.':
			return lower(f.OriginalName[i:])
		case '/', '\\':
			return ""
		}
	}
	return ""
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// LogEntry is one system log row. Sync cycles and server lifecycle events
// append here so they stay visible from the admin surfaces afterwards.
type LogEntry struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
}

// Log levels for LogEntry
const (
	LogInfo    = "info"
	LogWarning = "warning"
	LogError   = "error"
)

// Stats is a snapshot of store counters. All fields come from one read
// transaction so they are consistent with each other.
type Stats struct {
	Total      int            `json:"total_submissions"`
	Today      int            `json:"today_submissions"`
	Unsynced   int            `json:"unsynced_submissions"`
	ByFormType map[string]int `json:"by_form_type"`
}
