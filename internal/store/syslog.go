package store

import (
	"fmt"
	"time"

	"github.com/fieldpost/fieldpost/internal/models"
)

// LogEvent appends a system log row. Sync cycle summaries and server
// lifecycle events land here so they can be inspected after the fact.
func (s *Store) LogEvent(level, source, message string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT INTO system_logs (created_at, level, source, message)
			VALUES (?, ?, ?, ?)`,
			time.Now().UTC(), level, source, message)
		if err != nil {
			return fmt.Errorf("append system log: %w", err)
		}
		return nil
	})
}

// RecentLogs returns the newest limit entries, newest first. A limit of
// zero or less falls back to 50.
func (s *Store) RecentLogs(limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.Query(`
		SELECT id, created_at, level, source, message
		FROM system_logs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list system logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Level, &e.Source, &e.Message); err != nil {
			return nil, fmt.Errorf("scan system log: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
