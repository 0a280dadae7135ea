package output

import (
	"strings"
	"testing"
	"time"

	"github.com/fieldpost/fieldpost/internal/models"
)

func TestFormatTimeAgo(t *testing.T) {
	now := time.Now()
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{1 * time.Minute, "1m ago"},
		{45 * time.Minute, "45m ago"},
		{1 * time.Hour, "1h ago"},
		{23 * time.Hour, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{6 * 24 * time.Hour, "6d ago"},
	}

	for _, tc := range tests {
		if got := FormatTimeAgo(now.Add(-tc.ago)); got != tc.want {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
}

func TestFormatTimeAgoOldDates(t *testing.T) {
	old := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	if got := FormatTimeAgo(old); got != "2024-03-09" {
		t.Errorf("FormatTimeAgo(old) = %q, want date", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}

	for _, tc := range tests {
		if got := FormatBytes(tc.n); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestFormatSubmissionLine(t *testing.T) {
	sub := &models.Submission{
		ID:        7,
		CreatedAt: time.Now().Add(-2 * time.Minute),
		FormType:  "checkin",
		Data: models.FormData{
			{Name: "name", Value: "Ada"},
			{Name: "site", Value: "north gate"},
		},
		Files: []models.FileRef{{OriginalName: "photo.jpg", SizeBytes: 2048}},
	}

	line := FormatSubmissionLine(sub)
	for _, want := range []string{"#7", "checkin", "2 fields", "1 file", "2.0 KB", "2m ago", "pending"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	sub.Synced = true
	sub.Files = nil
	line = FormatSubmissionLine(sub)
	if !strings.Contains(line, "synced") {
		t.Errorf("line %q missing synced badge", line)
	}
	if strings.Contains(line, "file") {
		t.Errorf("line %q mentions files for a file-less submission", line)
	}
}

func TestFormatLogLine(t *testing.T) {
	e := models.LogEntry{
		CreatedAt: time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
		Level:     models.LogWarning,
		Source:    "sync",
		Message:   "sync cycle: 1/3 delivered",
	}

	line := FormatLogLine(e)
	for _, want := range []string{"warning", "sync: sync cycle: 1/3 delivered"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}
