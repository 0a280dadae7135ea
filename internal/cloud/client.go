// Package cloud delivers signed submissions to the remote fieldpost API
// and classifies every outcome: delivered, rejected by the remote, or a
// transient failure worth retrying.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	submitPath       = "/api/v1/submissions"
	maxResponseBytes = 1 << 20
)

// RejectionError reports that the remote service received the request and
// declined it. Terminal for this delivery: the identical request cannot
// succeed on retry, so the engine moves on and leaves the row unsynced.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "submission rejected: " + e.Reason
}

// IsRejection reports whether err is a terminal rejection.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}

// SubmitRequest is the signed envelope POSTed to the cloud.
type SubmitRequest struct {
	APIKey    string         `json:"api_key"`
	Timestamp string         `json:"timestamp"`
	Signature string         `json:"signature"`
	Data      SubmissionData `json:"data"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Client posts signed submissions to the cloud API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with the default 30s request timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Send delivers one signed submission. nil means delivered: the remote
// answered HTTP 200 with success true. A *RejectionError means the remote
// declined. Any other error is transient (network failure, timeout,
// non-200 status) and safe to retry with the byte-identical request.
func (c *Client) Send(ctx context.Context, req *SubmitRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+submitPath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body))
	}

	var sr submitResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		// The remote answered 200 with a shape we do not understand;
		// the identical request will not decode better next time
		return &RejectionError{Reason: "unexpected response: " + truncate(body)}
	}
	if !sr.Success {
		reason := sr.Message
		if reason == "" {
			reason = "declined without message"
		}
		return &RejectionError{Reason: reason}
	}

	return nil
}

func truncate(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
