package server

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestSubmissionsNewestFirst(t *testing.T) {
	h := newHarness(t)

	for _, name := range []string{"first", "second", "third"} {
		if status := h.postForm("visitor="+name, nil); status != http.StatusOK {
			t.Fatalf("seed %s: got %d", name, status)
		}
	}

	var resp submissionsResponse
	if status := h.getJSON("/api/submissions", &resp); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if !resp.Success || resp.Total != 3 {
		t.Fatalf("response: success=%v total=%d", resp.Success, resp.Total)
	}
	if got := resp.Submissions[0].Data.Get("visitor"); got != "third" {
		t.Errorf("newest first: got %q, want third", got)
	}
	if got := resp.Submissions[2].Data.Get("visitor"); got != "first" {
		t.Errorf("oldest last: got %q, want first", got)
	}
}

func TestSubmissionsLimit(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 4; i++ {
		h.postForm("n=x", nil)
	}

	var resp submissionsResponse
	if status := h.getJSON("/api/submissions?limit=2", &resp); status != http.StatusOK {
		t.Fatalf("status: got %d", status)
	}
	if resp.Total != 2 || len(resp.Submissions) != 2 {
		t.Errorf("limit ignored: total=%d len=%d", resp.Total, len(resp.Submissions))
	}

	var errResp ErrorResponse
	if status := h.getJSON("/api/submissions?limit=zero", &errResp); status != http.StatusBadRequest {
		t.Fatalf("bad limit: got %d, want 400", status)
	}
	if errResp.Success || errResp.Error.Code != ErrCodeBadRequest {
		t.Errorf("error body: %+v", errResp)
	}

	if status := h.getJSON("/api/submissions?limit=-1", nil); status != http.StatusBadRequest {
		t.Errorf("negative limit: got %d, want 400", status)
	}
}

func TestStatsEndpoint(t *testing.T) {
	h := newHarness(t)

	h.postForm("form_type=checkin&a=1", nil)
	h.postForm("form_type=checkin&a=2", nil)
	h.postForm("form_type=incident&a=3", nil)

	var resp statsResponse
	if status := h.getJSON("/api/stats", &resp); status != http.StatusOK {
		t.Fatalf("status: got %d", status)
	}
	if !resp.Success {
		t.Fatal("success flag not set")
	}
	st := resp.Stats
	if st.Total != 3 || st.Today != 3 || st.Unsynced != 3 {
		t.Errorf("counts: total=%d today=%d unsynced=%d", st.Total, st.Today, st.Unsynced)
	}
	if st.ByFormType["checkin"] != 2 || st.ByFormType["incident"] != 1 {
		t.Errorf("by form type: %v", st.ByFormType)
	}
}

func TestUploadedFileServing(t *testing.T) {
	h := newHarness(t)

	var resp submitResponse
	h.postSubmit(nil, []filePart{{field: "f", name: "readme.txt", content: "served bytes"}}, &resp)

	sub, err := h.Store.Get(resp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	stored := sub.Files[0].StoredName

	got, err := http.Get(h.URL + "/uploads/" + stored)
	if err != nil {
		t.Fatalf("GET upload: %v", err)
	}
	defer got.Body.Close()
	if got.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", got.StatusCode)
	}
	body, _ := io.ReadAll(got.Body)
	if string(body) != "served bytes" {
		t.Errorf("body: got %q", body)
	}

	if status := h.getJSON("/uploads/never_stored.txt", nil); status != http.StatusNotFound {
		t.Errorf("unknown file: got %d, want 404", status)
	}

	// An encoded traversal survives client-side path cleaning but must
	// still be refused
	esc, err := http.Get(h.URL + "/uploads/..%2Ffieldpost.db")
	if err != nil {
		t.Fatalf("GET traversal: %v", err)
	}
	defer esc.Body.Close()
	if esc.StatusCode != http.StatusNotFound {
		t.Errorf("traversal: got %d, want 404", esc.StatusCode)
	}
}

func TestIndexAndFormPages(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index status: got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type: got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, form := range defaultForms {
		if !strings.Contains(string(body), "/form/"+form) {
			t.Errorf("index missing link to %s", form)
		}
	}

	form, err := http.Get(h.URL + "/form/checkin")
	if err != nil {
		t.Fatalf("GET form: %v", err)
	}
	defer form.Body.Close()
	if form.StatusCode != http.StatusOK {
		t.Fatalf("form status: got %d", form.StatusCode)
	}
	formBody, _ := io.ReadAll(form.Body)
	if !strings.Contains(string(formBody), "checkin") {
		t.Error("form page does not name its form type")
	}

	if status := h.getJSON("/form/Checkin", nil); status != http.StatusNotFound {
		t.Errorf("uppercase form type: got %d, want 404", status)
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	var body map[string]string
	if status := h.getJSON("/healthz", &body); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if body["status"] != "ok" {
		t.Errorf("body: %v", body)
	}
}

func TestMetricz(t *testing.T) {
	h := newHarness(t)

	h.postSubmit(nil, []filePart{{field: "f", name: "a.bin", content: "12345"}}, nil)

	var snap MetricsSnapshot
	if status := h.getJSON("/metricz", &snap); status != http.StatusOK {
		t.Fatalf("status: got %d", status)
	}
	if snap.SubmissionsAccepted != 1 {
		t.Errorf("accepted: got %d, want 1", snap.SubmissionsAccepted)
	}
	if snap.UploadBytesStored != 5 {
		t.Errorf("upload bytes: got %d, want 5", snap.UploadBytesStored)
	}
	if snap.Requests < 2 {
		t.Errorf("requests: got %d, want >= 2", snap.Requests)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if rid := resp.Header.Get("X-Request-ID"); len(rid) != 32 {
		t.Errorf("request id header: got %q", rid)
	}
}

func TestQRCodeWithBaseURL(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.BaseURL = "http://10.0.0.5:8080/"
	})

	var resp qrcodeResponse
	if status := h.getJSON("/api/qrcode", &resp); status != http.StatusOK {
		t.Fatalf("status: got %d", status)
	}
	if !resp.Success {
		t.Fatal("success flag not set")
	}
	if resp.URL != "http://10.0.0.5:8080" {
		t.Errorf("url: got %q", resp.URL)
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(resp.QRCode, prefix) {
		t.Fatalf("qrcode does not carry a data url: %.40s", resp.QRCode)
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.QRCode, prefix))
	if err != nil {
		t.Fatalf("decode qr payload: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("qr payload is not a png")
	}
}

func TestPublicURLFallsBackToListenPort(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.ListenAddr = "0.0.0.0:9999"
	})

	url := h.Srv.publicURL()
	if !strings.HasPrefix(url, "http://") || !strings.HasSuffix(url, ":9999") {
		t.Errorf("public url: got %q", url)
	}
}
