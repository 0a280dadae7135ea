package store

import (
	"fmt"
	"time"

	"github.com/fieldpost/fieldpost/internal/models"
)

// Stats returns store counters computed inside a single read transaction,
// so total, today, unsynced and the per-form-type breakdown describe one
// snapshot even while submissions keep arriving.
func (s *Store) Stats() (models.Stats, error) {
	stats := models.Stats{ByFormType: make(map[string]int)}

	tx, err := s.conn.Begin()
	if err != nil {
		return stats, fmt.Errorf("stats: %w", err)
	}
	defer tx.Rollback()

	// Today is the device's local calendar day, compared as UTC instants
	// because all timestamps are stored in UTC
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UTC()
	dayEnd := dayStart.Add(24 * time.Hour)

	err = tx.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN created_at >= ? AND created_at < ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN synced = 0 THEN 1 ELSE 0 END), 0)
		FROM submissions`, dayStart, dayEnd).Scan(&stats.Total, &stats.Today, &stats.Unsynced)
	if err != nil {
		return stats, fmt.Errorf("stats: counts: %w", err)
	}

	rows, err := tx.Query(`SELECT form_type, COUNT(*) FROM submissions GROUP BY form_type`)
	if err != nil {
		return stats, fmt.Errorf("stats: form types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var formType string
		var count int
		if err := rows.Scan(&formType, &count); err != nil {
			return stats, fmt.Errorf("stats: scan form type: %w", err)
		}
		stats.ByFormType[formType] = count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("stats: form types: %w", err)
	}

	return stats, nil
}
