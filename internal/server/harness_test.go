package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fieldpost/fieldpost/internal/store"
)

// harness wraps a full intake server over a real store on disk.
type harness struct {
	t     *testing.T
	URL   string
	Store *store.Store
	Srv   *Server
	Dir   string
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Initialize(dir)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := Config{
		ListenAddr: ":0",
		DataDir:    dir,
		// Effectively unlimited unless a test opts in
		MaxUploadMB: 16,
		RatePerMin:  100000,
		RateBurst:   100000,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := NewServer(cfg, st)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	hs := httptest.NewServer(srv.routes())
	t.Cleanup(hs.Close)

	return &harness{t: t, URL: hs.URL, Store: st, Srv: srv, Dir: dir}
}

// getJSON GETs a path and decodes the JSON body into out.
func (h *harness) getJSON(path string, out any) int {
	h.t.Helper()
	resp, err := http.Get(h.URL + path)
	if err != nil {
		h.t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			h.t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

type filePart struct {
	field   string
	name    string
	content string
}

// buildMultipart writes fields then files, in order.
func buildMultipart(t *testing.T, fields [][2]string, files []filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		if _, err := io.WriteString(fw, f.content); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, w.FormDataContentType()
}

// postSubmit sends a multipart submission and decodes the response.
func (h *harness) postSubmit(fields [][2]string, files []filePart, out any) int {
	h.t.Helper()
	body, ct := buildMultipart(h.t, fields, files)
	resp, err := http.Post(h.URL+"/api/submit", ct, body)
	if err != nil {
		h.t.Fatalf("POST /api/submit: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			h.t.Fatalf("decode submit response: %v", err)
		}
	}
	return resp.StatusCode
}

// postForm sends an urlencoded submission.
func (h *harness) postForm(body string, out any) int {
	h.t.Helper()
	resp, err := http.Post(h.URL+"/api/submit", "application/x-www-form-urlencoded", strings.NewReader(body))
	if err != nil {
		h.t.Fatalf("POST /api/submit: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			h.t.Fatalf("decode submit response: %v", err)
		}
	}
	return resp.StatusCode
}
