package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fieldpost/fieldpost/internal/models"
)

// defaultForms are the form types offered on the landing page. Any form
// type a device posts is accepted regardless; these are just the links.
var defaultForms = []string{"general", "checkin", "survey", "incident"}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	render(w, "index.html", map[string]any{
		"Forms": defaultForms,
	})
}

func (s *Server) handleFormPage(w http.ResponseWriter, r *http.Request) {
	formType := r.PathValue("type")
	if !validFormType(formType) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown form type")
		return
	}
	render(w, "form.html", map[string]any{
		"FormType": formType,
	})
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	render(w, "admin.html", nil)
}

type submissionsResponse struct {
	Success     bool                `json:"success"`
	Total       int                 `json:"total"`
	Submissions []models.Submission `json:"submissions"`
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	subs, err := s.store.List(limit)
	if err != nil {
		logFor(r.Context()).Error("list submissions", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "could not load submissions")
		return
	}

	writeJSON(w, http.StatusOK, submissionsResponse{
		Success:     true,
		Total:       len(subs),
		Submissions: subs,
	})
}

type statsResponse struct {
	Success bool         `json:"success"`
	Stats   models.Stats `json:"stats"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		logFor(r.Context()).Error("load stats", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "could not load stats")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Success: true, Stats: stats})
}

func (s *Server) handleUploadedFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || name != sanitizeFilename(name) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no such file")
		return
	}

	path := filepath.Join(s.config.UploadsDir(), name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no such file")
		return
	}
	http.ServeFile(w, r, path)
}

// validFormType accepts short lowercase slugs, the shape the landing
// page links and the devices use.
func validFormType(t string) bool {
	if t == "" || len(t) > 64 {
		return false
	}
	for _, r := range t {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return !strings.HasPrefix(t, "-")
}
