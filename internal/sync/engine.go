// Package sync pushes unsynced submissions to the cloud in bounded,
// oldest-first batches. Deliveries are signed, retried on transient
// failures only, and acknowledged by marking rows synced; the remote
// deduplicates on submission id, so a crash between delivery and
// acknowledgment is safe.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fieldpost/fieldpost/internal/cloud"
	"github.com/fieldpost/fieldpost/internal/models"
	"github.com/fieldpost/fieldpost/internal/sign"
	"github.com/fieldpost/fieldpost/internal/store"
	"github.com/fieldpost/fieldpost/internal/syncconfig"
)

var (
	// ErrCycleRunning means another cycle holds the engine; the trigger
	// is dropped, not queued.
	ErrCycleRunning = errors.New("sync cycle already running")

	// ErrNotConfigured means sync is enabled but the API key, secret or
	// cloud URL is missing. Raised before any network activity.
	ErrNotConfigured = errors.New("sync not configured: api key, secret and cloud url required")
)

// Options bound a sync cycle. Zero fields fall back to defaults.
type Options struct {
	BatchSize    int
	MaxRetries   int
	RetryDelay   time.Duration
	ItemDelay    time.Duration
	ProbeTimeout time.Duration
}

// DefaultOptions returns the shipped tuning: small batches with a
// throttle between items, sized for flaky uplinks.
func DefaultOptions() Options {
	return Options{
		BatchSize:    10,
		MaxRetries:   3,
		RetryDelay:   5 * time.Second,
		ItemDelay:    time.Second,
		ProbeTimeout: 10 * time.Second,
	}
}

// ItemResult records the outcome for one submission in a cycle.
type ItemResult struct {
	ID        int64
	Attempts  int
	Delivered bool
	Reason    string // rejection reason or final transient error
}

// Report summarizes one cycle.
type Report struct {
	Skipped string // non-empty when the cycle did not run (disabled, offline)
	Success int
	Total   int
	Items   []ItemResult
}

// Engine pushes unsynced submissions to the cloud.
type Engine struct {
	store  *store.Store
	client *cloud.Client
	cfg    *syncconfig.Config
	opts   Options
	logger *slog.Logger

	// Probe decides whether the network is worth trying, before the
	// store is touched. Nil means a TCP dial toward the API host.
	Probe func(ctx context.Context) error

	mu    sync.Mutex
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an engine over an open store and client. Config mutations
// (last sync time) are persisted back to the store's data directory.
func New(st *store.Store, client *cloud.Client, cfg *syncconfig.Config, opts Options) *Engine {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.ItemDelay <= 0 {
		opts.ItemDelay = def.ItemDelay
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = def.ProbeTimeout
	}

	return &Engine{
		store:  st,
		client: client,
		cfg:    cfg,
		opts:   opts,
		logger: slog.Default(),
		sleep:  sleepCtx,
	}
}

// SetLogger replaces the default slog logger.
func (e *Engine) SetLogger(l *slog.Logger) {
	if l != nil {
		e.logger = l
	}
}

// RunCycle pushes one batch of unsynced submissions, oldest first. The
// returned error flags conditions worth alarming on: missing credentials,
// storage failures, cancellation. A disabled switch or a dead network is
// a normal skip, reported in Report.Skipped with a nil error. A second
// concurrent call is dropped with ErrCycleRunning.
func (e *Engine) RunCycle(ctx context.Context) (Report, error) {
	if !e.mu.TryLock() {
		return Report{}, ErrCycleRunning
	}
	defer e.mu.Unlock()

	// Whole-cycle preconditions, all checked before touching the store
	if !e.cfg.Enabled() {
		e.logger.Debug("sync disabled, skipping cycle")
		return Report{Skipped: "sync disabled"}, nil
	}

	apiKey := e.cfg.ResolvedAPIKey()
	secret := e.cfg.ResolvedAPISecret()
	if apiKey == "" || secret == "" || e.cfg.ResolvedBaseURL() == "" {
		return Report{}, ErrNotConfigured
	}

	if err := e.probe(ctx); err != nil {
		e.logger.Info("no connectivity, skipping cycle", "error", err)
		return Report{Skipped: "no connectivity"}, nil
	}

	batch, err := e.store.ListUnsynced(e.opts.BatchSize)
	if err != nil {
		return Report{}, fmt.Errorf("load batch: %w", err)
	}
	if len(batch) == 0 {
		e.logger.Debug("nothing to sync")
		return Report{}, nil
	}

	report := Report{Total: len(batch)}
	var cancelled bool
	for i := range batch {
		// Throttle between items; cancellation lands here, never mid-item
		if i > 0 {
			if err := e.sleep(ctx, e.opts.ItemDelay); err != nil {
				cancelled = true
				break
			}
		}

		item := e.pushOne(ctx, &batch[i], apiKey, secret)
		report.Items = append(report.Items, item)
		if item.Delivered {
			report.Success++
		}

		if ctx.Err() != nil {
			cancelled = true
			break
		}
	}

	// A non-empty batch was attempted: record that a cycle ran, whatever
	// the per-item outcomes were
	now := time.Now().UTC()
	e.cfg.LastSyncTime = &now
	if err := syncconfig.Save(e.store.Dir(), e.cfg); err != nil {
		e.logger.Warn("could not persist last sync time", "error", err)
	}

	e.logCycle(report)

	if cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// pushOne signs and delivers a single submission. The timestamp and
// signature are computed once, so every retry re-sends the byte-identical
// request and the remote can pair retries as one logical attempt.
func (e *Engine) pushOne(ctx context.Context, sub *models.Submission, apiKey, secret string) ItemResult {
	result := ItemResult{ID: sub.ID}

	payload := cloud.BuildPayload(sub)
	ts := time.Now().Unix()
	sig, err := sign.Sign(payload, secret, ts)
	if err != nil {
		result.Reason = "sign: " + err.Error()
		e.logger.Error("signing failed", "submission", sub.ID, "error", err)
		return result
	}

	req := &cloud.SubmitRequest{
		APIKey:    apiKey,
		Timestamp: strconv.FormatInt(ts, 10),
		Signature: sig,
		Data:      payload,
	}

	for attempt := 1; attempt <= e.opts.MaxRetries; attempt++ {
		result.Attempts = attempt

		err := e.client.Send(ctx, req)
		if err == nil {
			if markErr := e.store.MarkSynced(sub.ID); markErr != nil {
				// Delivered but not recorded: the next cycle resends and
				// the remote deduplicates on submission_id
				result.Reason = "delivered but not marked: " + markErr.Error()
				e.logger.Error("mark synced failed", "submission", sub.ID, "error", markErr)
				return result
			}
			result.Delivered = true
			e.logger.Info("submission delivered", "submission", sub.ID, "attempts", attempt)
			return result
		}

		if cloud.IsRejection(err) {
			// Terminal for this item: the identical request cannot
			// succeed on a retry. The row stays unsynced.
			result.Reason = err.Error()
			e.logger.Warn("submission rejected", "submission", sub.ID, "error", err)
			return result
		}

		result.Reason = err.Error()
		e.logger.Warn("delivery attempt failed", "submission", sub.ID, "attempt", attempt, "error", err)

		if attempt < e.opts.MaxRetries {
			if err := e.sleep(ctx, e.opts.RetryDelay); err != nil {
				result.Reason = err.Error()
				return result
			}
		}
	}

	return result
}

func (e *Engine) probe(ctx context.Context) error {
	if e.Probe != nil {
		return e.Probe(ctx)
	}
	return cloud.CheckConnectivity(ctx, e.cfg.ResolvedBaseURL(), e.opts.ProbeTimeout)
}

func (e *Engine) logCycle(r Report) {
	e.logger.Info("sync cycle complete", "delivered", r.Success, "total", r.Total)

	level := models.LogInfo
	if r.Success < r.Total {
		level = models.LogWarning
	}
	msg := fmt.Sprintf("sync cycle: %d/%d delivered", r.Success, r.Total)
	if err := e.store.LogEvent(level, "sync", msg); err != nil {
		e.logger.Warn("could not record cycle in system log", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
