package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fieldpost/fieldpost/internal/cloud"
	"github.com/fieldpost/fieldpost/internal/models"
	"github.com/fieldpost/fieldpost/internal/store"
	"github.com/fieldpost/fieldpost/internal/syncconfig"
)

func setupSyncStore(t *testing.T) *store.Store {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// A second pool connection would see a fresh empty memory database
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(store.Schema()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return store.New(conn, t.TempDir())
}

func seedSubmissions(t *testing.T, st *store.Store, n int) []int64 {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		sub := &models.Submission{
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			FormType:  "checkin",
			Data:      models.FormData{{Name: "name", Value: fmt.Sprintf("visitor-%d", i+1)}},
			SourceIP:  "192.168.1.50",
		}
		if err := st.Insert(sub); err != nil {
			t.Fatalf("seed insert: %v", err)
		}
		ids = append(ids, sub.ID)
	}
	return ids
}

// stubCloud is an in-process stand-in for the ingest API. respond is
// called with the decoded envelope and the 1-based attempt count for
// that submission id.
type stubCloud struct {
	URL string

	mu       sync.Mutex
	requests []cloud.SubmitRequest
	attempts map[int64]int
	respond  func(req cloud.SubmitRequest, attempt int) (status int, body string)
}

func newStubCloud(t *testing.T, respond func(req cloud.SubmitRequest, attempt int) (int, string)) *stubCloud {
	t.Helper()
	cs := &stubCloud{attempts: make(map[int64]int), respond: respond}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cloud.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode envelope: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		cs.mu.Lock()
		cs.requests = append(cs.requests, req)
		cs.attempts[req.Data.SubmissionID]++
		n := cs.attempts[req.Data.SubmissionID]
		cs.mu.Unlock()

		status, body := cs.respond(req, n)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	cs.URL = srv.URL
	return cs
}

func (cs *stubCloud) calls() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.requests)
}

func (cs *stubCloud) requestsFor(id int64) []cloud.SubmitRequest {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var out []cloud.SubmitRequest
	for _, r := range cs.requests {
		if r.Data.SubmissionID == id {
			out = append(out, r)
		}
	}
	return out
}

func alwaysAccept(cloud.SubmitRequest, int) (int, string) {
	return http.StatusOK, `{"success": true}`
}

// newTestEngine wires an engine with a reachable probe and no real
// sleeping. Tests that need cancellation swap e.sleep again.
func newTestEngine(t *testing.T, st *store.Store, baseURL string) (*Engine, *syncconfig.Config) {
	t.Helper()
	cfg := syncconfig.Default()
	cfg.SyncEnabled = true
	cfg.APIKey = "key-123"
	cfg.APISecret = "secret-456"
	cfg.BaseURL = baseURL

	eng := New(st, cloud.New(baseURL), cfg, DefaultOptions())
	eng.Probe = func(ctx context.Context) error { return nil }
	eng.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return eng, cfg
}

func unsyncedIDs(t *testing.T, st *store.Store) []int64 {
	t.Helper()
	subs, err := st.ListUnsynced(100)
	if err != nil {
		t.Fatalf("list unsynced: %v", err)
	}
	ids := make([]int64, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestCycleDeliversBatchOldestFirst(t *testing.T) {
	st := setupSyncStore(t)
	ids := seedSubmissions(t, st, 3)
	stub := newStubCloud(t, alwaysAccept)
	eng, _ := newTestEngine(t, st, stub.URL)

	report, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report.Skipped != "" {
		t.Fatalf("skipped: %q", report.Skipped)
	}
	if report.Total != 3 || report.Success != 3 {
		t.Fatalf("report: success=%d total=%d, want 3/3", report.Success, report.Total)
	}
	for i, item := range report.Items {
		if item.ID != ids[i] {
			t.Errorf("item[%d] id: got %d, want %d (oldest first)", i, item.ID, ids[i])
		}
		if !item.Delivered || item.Attempts != 1 {
			t.Errorf("item[%d]: delivered=%v attempts=%d, want delivered in 1", i, item.Delivered, item.Attempts)
		}
	}

	if left := unsyncedIDs(t, st); len(left) != 0 {
		t.Fatalf("still unsynced: %v", left)
	}
	for _, id := range ids {
		sub, err := st.Get(id)
		if err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if !sub.Synced || sub.SyncedAt == nil {
			t.Errorf("submission %d not marked synced", id)
		}
	}

	// The cycle ran a non-empty batch, so the sync time must be on disk
	if reloaded := syncconfig.Load(st.Dir()); reloaded.LastSyncTime == nil {
		t.Fatal("last sync time not persisted")
	}

	// Envelope sanity on the first capture
	first := stub.requestsFor(ids[0])[0]
	if first.APIKey != "key-123" {
		t.Errorf("api key: got %q", first.APIKey)
	}
	if len(first.Signature) != 32 {
		t.Errorf("signature: got %q, want 32 hex chars", first.Signature)
	}
	if first.Data.Source != "raspberry_pi" {
		t.Errorf("source: got %q", first.Data.Source)
	}
}

func TestCycleRetriesTransientThenDelivers(t *testing.T) {
	st := setupSyncStore(t)
	ids := seedSubmissions(t, st, 1)
	stub := newStubCloud(t, func(req cloud.SubmitRequest, attempt int) (int, string) {
		if attempt == 1 {
			return http.StatusInternalServerError, `boom`
		}
		return http.StatusOK, `{"success": true}`
	})
	eng, _ := newTestEngine(t, st, stub.URL)

	report, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report.Success != 1 {
		t.Fatalf("success: got %d, want 1", report.Success)
	}
	if got := report.Items[0].Attempts; got != 2 {
		t.Fatalf("attempts: got %d, want 2", got)
	}

	// Retries re-send the identical signed request
	reqs := stub.requestsFor(ids[0])
	if len(reqs) != 2 {
		t.Fatalf("requests: got %d, want 2", len(reqs))
	}
	if reqs[0].Signature != reqs[1].Signature || reqs[0].Timestamp != reqs[1].Timestamp {
		t.Fatal("retry changed the signed request")
	}

	sub, err := st.Get(ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !sub.Synced {
		t.Fatal("submission not marked synced after delivery")
	}
}

func TestCycleRejectionIsTerminal(t *testing.T) {
	st := setupSyncStore(t)
	ids := seedSubmissions(t, st, 1)
	stub := newStubCloud(t, func(cloud.SubmitRequest, int) (int, string) {
		return http.StatusOK, `{"success": false, "message": "bad signature"}`
	})
	eng, _ := newTestEngine(t, st, stub.URL)

	report, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report.Success != 0 || report.Total != 1 {
		t.Fatalf("report: success=%d total=%d, want 0/1", report.Success, report.Total)
	}

	// A rejection must not be retried
	if got := stub.calls(); got != 1 {
		t.Fatalf("server calls: got %d, want 1", got)
	}
	item := report.Items[0]
	if item.Delivered || item.Attempts != 1 {
		t.Fatalf("item: delivered=%v attempts=%d, want rejection after 1", item.Delivered, item.Attempts)
	}
	if !strings.Contains(item.Reason, "bad signature") {
		t.Fatalf("reason: got %q", item.Reason)
	}

	if left := unsyncedIDs(t, st); len(left) != 1 || left[0] != ids[0] {
		t.Fatalf("unsynced after rejection: %v", left)
	}

	// The batch still ran, so the sync time is recorded
	if reloaded := syncconfig.Load(st.Dir()); reloaded.LastSyncTime == nil {
		t.Fatal("last sync time not persisted after rejected batch")
	}
}

func TestCycleExhaustsRetries(t *testing.T) {
	st := setupSyncStore(t)
	seedSubmissions(t, st, 1)
	stub := newStubCloud(t, func(cloud.SubmitRequest, int) (int, string) {
		return http.StatusBadGateway, `upstream down`
	})
	eng, _ := newTestEngine(t, st, stub.URL)

	report, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report.Success != 0 {
		t.Fatalf("success: got %d, want 0", report.Success)
	}
	if got := stub.calls(); got != 3 {
		t.Fatalf("server calls: got %d, want 3", got)
	}
	item := report.Items[0]
	if item.Attempts != 3 || item.Delivered {
		t.Fatalf("item: attempts=%d delivered=%v, want 3 failed", item.Attempts, item.Delivered)
	}
	if !strings.Contains(item.Reason, "HTTP 502") {
		t.Fatalf("reason: got %q", item.Reason)
	}

	if left := unsyncedIDs(t, st); len(left) != 1 {
		t.Fatalf("row should stay unsynced, got %v", left)
	}
}

func TestCycleMixedOutcomes(t *testing.T) {
	st := setupSyncStore(t)
	ids := seedSubmissions(t, st, 3)
	stub := newStubCloud(t, func(req cloud.SubmitRequest, attempt int) (int, string) {
		if req.Data.SubmissionID == ids[1] {
			return http.StatusOK, `{"success": false, "message": "unknown form type"}`
		}
		return http.StatusOK, `{"success": true}`
	})
	eng, _ := newTestEngine(t, st, stub.URL)

	report, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report.Success != 2 || report.Total != 3 {
		t.Fatalf("report: success=%d total=%d, want 2/3", report.Success, report.Total)
	}

	left := unsyncedIDs(t, st)
	if len(left) != 1 || left[0] != ids[1] {
		t.Fatalf("unsynced: got %v, want [%d]", left, ids[1])
	}
}

func TestCycleDisabledSkips(t *testing.T) {
	st := setupSyncStore(t)
	seedSubmissions(t, st, 2)
	stub := newStubCloud(t, alwaysAccept)
	eng, cfg := newTestEngine(t, st, stub.URL)
	cfg.SyncEnabled = false

	report, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("disabled sync is not an error, got %v", err)
	}
	if report.Skipped != "sync disabled" {
		t.Fatalf("skipped: got %q", report.Skipped)
	}
	if got := stub.calls(); got != 0 {
		t.Fatalf("server calls: got %d, want 0", got)
	}
	if left := unsyncedIDs(t, st); len(left) != 2 {
		t.Fatalf("store touched on skipped cycle: %v", left)
	}
	if _, err := os.Stat(syncconfig.Path(st.Dir())); !os.IsNotExist(err) {
		t.Fatal("config written on skipped cycle")
	}
}

func TestCycleOfflineSkips(t *testing.T) {
	st := setupSyncStore(t)
	seedSubmissions(t, st, 2)
	stub := newStubCloud(t, alwaysAccept)
	eng, _ := newTestEngine(t, st, stub.URL)
	eng.Probe = func(ctx context.Context) error {
		return errors.New("no route to host")
	}

	report, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("offline is not an error, got %v", err)
	}
	if report.Skipped != "no connectivity" {
		t.Fatalf("skipped: got %q", report.Skipped)
	}
	if got := stub.calls(); got != 0 {
		t.Fatalf("server calls: got %d, want 0", got)
	}
	if _, err := os.Stat(syncconfig.Path(st.Dir())); !os.IsNotExist(err) {
		t.Fatal("config written on skipped cycle")
	}
}

func TestCycleMissingCredentials(t *testing.T) {
	t.Setenv("FIELDPOST_API_SECRET", "")

	st := setupSyncStore(t)
	seedSubmissions(t, st, 1)
	stub := newStubCloud(t, alwaysAccept)
	eng, cfg := newTestEngine(t, st, stub.URL)
	cfg.APISecret = ""

	probed := false
	eng.Probe = func(ctx context.Context) error {
		probed = true
		return nil
	}

	_, err := eng.RunCycle(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err: got %v, want ErrNotConfigured", err)
	}
	if probed {
		t.Fatal("probe ran before the credentials check")
	}
	if got := stub.calls(); got != 0 {
		t.Fatalf("server calls: got %d, want 0", got)
	}
}

func TestCycleEmptyBatch(t *testing.T) {
	st := setupSyncStore(t)
	stub := newStubCloud(t, alwaysAccept)
	eng, _ := newTestEngine(t, st, stub.URL)

	report, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report.Total != 0 || len(report.Items) != 0 {
		t.Fatalf("report: %+v, want empty", report)
	}
	if got := stub.calls(); got != 0 {
		t.Fatalf("server calls: got %d, want 0", got)
	}

	// Nothing was attempted: the sync time must not move
	if _, err := os.Stat(syncconfig.Path(st.Dir())); !os.IsNotExist(err) {
		t.Fatal("config written for an empty batch")
	}
}

func TestCycleHonorsBatchSize(t *testing.T) {
	st := setupSyncStore(t)
	ids := seedSubmissions(t, st, 5)
	stub := newStubCloud(t, alwaysAccept)

	cfg := syncconfig.Default()
	cfg.SyncEnabled = true
	cfg.APIKey = "key-123"
	cfg.APISecret = "secret-456"
	cfg.BaseURL = stub.URL

	eng := New(st, cloud.New(stub.URL), cfg, Options{BatchSize: 2})
	eng.Probe = func(ctx context.Context) error { return nil }
	eng.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	report, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report.Total != 2 || report.Success != 2 {
		t.Fatalf("report: success=%d total=%d, want 2/2", report.Success, report.Total)
	}

	// The two oldest went out; the rest wait for the next cycle
	left := unsyncedIDs(t, st)
	if len(left) != 3 {
		t.Fatalf("unsynced: got %v, want 3 rows", left)
	}
	if left[0] != ids[2] {
		t.Fatalf("oldest remaining: got %d, want %d", left[0], ids[2])
	}
}

func TestCycleSingleFlight(t *testing.T) {
	st := setupSyncStore(t)
	stub := newStubCloud(t, alwaysAccept)
	eng, _ := newTestEngine(t, st, stub.URL)

	eng.mu.Lock()
	_, err := eng.RunCycle(context.Background())
	eng.mu.Unlock()

	if !errors.Is(err, ErrCycleRunning) {
		t.Fatalf("err: got %v, want ErrCycleRunning", err)
	}
}

func TestCycleCancelledBetweenItems(t *testing.T) {
	st := setupSyncStore(t)
	ids := seedSubmissions(t, st, 3)
	stub := newStubCloud(t, alwaysAccept)
	eng, _ := newTestEngine(t, st, stub.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The first throttle slot cancels: item one lands, the rest wait
	eng.sleep = func(c context.Context, d time.Duration) error {
		cancel()
		return c.Err()
	}

	report, err := eng.RunCycle(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err: got %v, want context.Canceled", err)
	}
	if len(report.Items) != 1 || report.Success != 1 {
		t.Fatalf("report: items=%d success=%d, want 1 delivered", len(report.Items), report.Success)
	}

	sub, err := st.Get(ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !sub.Synced {
		t.Fatal("first item should be synced")
	}
	if left := unsyncedIDs(t, st); len(left) != 2 {
		t.Fatalf("unsynced: got %v, want 2 rows", left)
	}
}

func TestCycleRecordsSystemLog(t *testing.T) {
	st := setupSyncStore(t)
	seedSubmissions(t, st, 2)
	stub := newStubCloud(t, alwaysAccept)
	eng, _ := newTestEngine(t, st, stub.URL)

	if _, err := eng.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	logs, err := st.RecentLogs(5)
	if err != nil {
		t.Fatalf("recent logs: %v", err)
	}
	if len(logs) == 0 {
		t.Fatal("no system log entry for the cycle")
	}
	if logs[0].Source != "sync" || !strings.Contains(logs[0].Message, "2/2") {
		t.Fatalf("log entry: %+v", logs[0])
	}
}
