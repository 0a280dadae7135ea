package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fieldpost/fieldpost/internal/models"
)

// ErrNotFound is returned when a submission id does not exist
var ErrNotFound = errors.New("not found")

// Insert stores a submission and assigns its id from the autoincrement
// rowid, so identifiers strictly increase in insert order. The row is
// committed durably before Insert returns. A zero CreatedAt is filled
// with the current UTC time; an empty FormType becomes the default.
func (s *Store) Insert(sub *models.Submission) error {
	if sub.FormType == "" {
		sub.FormType = models.DefaultFormType
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	} else {
		sub.CreatedAt = sub.CreatedAt.UTC()
	}

	dataJSON, err := json.Marshal(sub.Data)
	if err != nil {
		return fmt.Errorf("encode form data: %w", err)
	}
	filesJSON := []byte("[]")
	if len(sub.Files) > 0 {
		filesJSON, err = json.Marshal(sub.Files)
		if err != nil {
			return fmt.Errorf("encode file refs: %w", err)
		}
	}

	return s.withWriteLock(func() error {
		res, err := s.conn.Exec(`
			INSERT INTO submissions (created_at, form_type, data, files, source_ip, user_agent, synced)
			VALUES (?, ?, ?, ?, ?, ?, 0)`,
			sub.CreatedAt, sub.FormType, string(dataJSON), string(filesJSON), sub.SourceIP, sub.UserAgent)
		if err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert submission: read id: %w", err)
		}
		sub.ID = id
		return nil
	})
}

// ListUnsynced returns up to limit submissions not yet delivered to the
// cloud, oldest first (ascending created_at, id as tiebreak). A limit of
// zero or less returns an empty batch without error.
func (s *Store) ListUnsynced(limit int) ([]models.Submission, error) {
	if limit <= 0 {
		return []models.Submission{}, nil
	}

	rows, err := s.conn.Query(`
		SELECT id, created_at, form_type, data, files, source_ip, user_agent, synced, synced_at
		FROM submissions
		WHERE synced = 0
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// List returns the most recent submissions, newest first. A limit of zero
// or less falls back to 50.
func (s *Store) List(limit int) ([]models.Submission, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.Query(`
		SELECT id, created_at, form_type, data, files, source_ip, user_agent, synced, synced_at
		FROM submissions
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// Get returns a single submission or ErrNotFound
func (s *Store) Get(id int64) (*models.Submission, error) {
	rows, err := s.conn.Query(`
		SELECT id, created_at, form_type, data, files, source_ip, user_agent, synced, synced_at
		FROM submissions
		WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	defer rows.Close()

	subs, err := scanSubmissions(rows)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("submission %d: %w", id, ErrNotFound)
	}
	return &subs[0], nil
}

// MarkSynced flags a submission as delivered to the cloud. Idempotent:
// the first call records synced_at, later calls leave it unchanged. An
// unknown id returns ErrNotFound.
func (s *Store) MarkSynced(id int64) error {
	return s.withWriteLock(func() error {
		res, err := s.conn.Exec(`
			UPDATE submissions
			SET synced = 1, synced_at = COALESCE(synced_at, ?)
			WHERE id = ?`,
			time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("mark synced: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark synced: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("mark synced: submission %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func scanSubmissions(rows *sql.Rows) ([]models.Submission, error) {
	var subs []models.Submission
	for rows.Next() {
		var (
			sub       models.Submission
			dataJSON  string
			filesJSON string
			sourceIP  sql.NullString
			userAgent sql.NullString
			synced    int
			syncedAt  sql.NullTime
		)
		err := rows.Scan(&sub.ID, &sub.CreatedAt, &sub.FormType, &dataJSON, &filesJSON,
			&sourceIP, &userAgent, &synced, &syncedAt)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}

		sub.CreatedAt = sub.CreatedAt.UTC()
		sub.SourceIP = sourceIP.String
		sub.UserAgent = userAgent.String
		sub.Synced = synced != 0
		if syncedAt.Valid {
			t := syncedAt.Time.UTC()
			sub.SyncedAt = &t
		}

		if dataJSON != "" {
			if err := json.Unmarshal([]byte(dataJSON), &sub.Data); err != nil {
				return nil, fmt.Errorf("decode form data for %d: %w", sub.ID, err)
			}
		}
		if filesJSON != "" && filesJSON != "null" && filesJSON != "[]" {
			if err := json.Unmarshal([]byte(filesJSON), &sub.Files); err != nil {
				return nil, fmt.Errorf("decode file refs for %d: %w", sub.ID, err)
			}
		}

		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
