package server

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory intake counters using atomics.
type Metrics struct {
	startTime   time.Time
	requests    atomic.Int64
	accepted    atomic.Int64
	rejected    atomic.Int64
	rateLimited atomic.Int64
	bytesStored atomic.Int64
}

// MetricsSnapshot is a point-in-time view of intake metrics.
type MetricsSnapshot struct {
	UptimeSeconds       float64 `json:"uptime_seconds"`
	Requests            int64   `json:"requests"`
	SubmissionsAccepted int64   `json:"submissions_accepted"`
	SubmissionsRejected int64   `json:"submissions_rejected"`
	RateLimited         int64   `json:"rate_limited"`
	UploadBytesStored   int64   `json:"upload_bytes_stored"`
}

// NewMetrics creates a Metrics instance with the current time as start.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordRequest increments the total request counter.
func (m *Metrics) RecordRequest() {
	m.requests.Add(1)
}

// RecordAccepted counts one stored submission and its attachment bytes.
func (m *Metrics) RecordAccepted(uploadBytes int64) {
	m.accepted.Add(1)
	m.bytesStored.Add(uploadBytes)
}

// RecordRejected counts a submission that failed validation or storage.
func (m *Metrics) RecordRejected() {
	m.rejected.Add(1)
}

// RecordRateLimited counts a request dropped by the per-IP limiter.
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Add(1)
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds:       time.Since(m.startTime).Seconds(),
		Requests:            m.requests.Load(),
		SubmissionsAccepted: m.accepted.Load(),
		SubmissionsRejected: m.rejected.Load(),
		RateLimited:         m.rateLimited.Load(),
		UploadBytesStored:   m.bytesStored.Load(),
	}
}
