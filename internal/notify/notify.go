// Package notify posts submission events to an operator-configured
// webhook. Deliveries are signed with HMAC-SHA256 when a secret is set,
// and are best-effort: a failing hook never blocks intake.
package notify

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fieldpost/fieldpost/internal/models"
)

// Event names carried in webhook payloads.
const (
	EventSubmissionReceived = "submission.received"
	EventSyncCompleted      = "sync.completed"
)

// Payload is the webhook POST body. Exactly one of Submission or Sync
// is set, matching Event.
type Payload struct {
	Event      string             `json:"event"`
	Timestamp  string             `json:"timestamp"`
	Submission *models.Submission `json:"submission,omitempty"`
	Sync       *SyncSummary       `json:"sync,omitempty"`
}

// SyncSummary reports a finished sync cycle.
type SyncSummary struct {
	Delivered int `json:"delivered"`
	Total     int `json:"total"`
}

// SubmissionReceived builds the payload for a freshly accepted submission.
func SubmissionReceived(sub *models.Submission) Payload {
	return Payload{
		Event:      EventSubmissionReceived,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Submission: sub,
	}
}

// SyncCompleted builds the payload for a finished sync cycle.
func SyncCompleted(delivered, total int) Payload {
	return Payload{
		Event:     EventSyncCompleted,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Sync:      &SyncSummary{Delivered: delivered, Total: total},
	}
}

// Notifier posts events to one webhook URL.
type Notifier struct {
	URL    string
	Secret string
	HTTP   *http.Client

	logger *slog.Logger
}

// New creates a notifier. An empty url disables it.
func New(url, secret string) *Notifier {
	return &Notifier{
		URL:    url,
		Secret: secret,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.URL != ""
}

// Announce dispatches in the background and logs failures. Intake
// handlers call this so a slow or dead hook cannot delay the response.
func (n *Notifier) Announce(p Payload) {
	if !n.Enabled() {
		return
	}
	go func() {
		if err := n.Dispatch(p); err != nil {
			n.logger.Warn("webhook delivery failed", "event", p.Event, "error", err)
		}
	}()
}

// Dispatch performs a synchronous HTTP POST to the webhook URL.
// Returns nil on any 2xx status.
func (n *Notifier) Dispatch(p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fieldpost-webhook/1")

	unixTS := fmt.Sprintf("%d", time.Now().Unix())
	req.Header.Set("X-Fieldpost-Timestamp", unixTS)

	if n.Secret != "" {
		mac := hmac.New(sha256.New, []byte(n.Secret))
		mac.Write([]byte(unixTS))
		mac.Write([]byte("."))
		mac.Write(body)
		sig := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set("X-Fieldpost-Signature", "sha256="+sig)
	}

	resp, err := n.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", n.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", n.URL, resp.StatusCode)
	}
	return nil
}
