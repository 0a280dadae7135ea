package server

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fieldpost/fieldpost/internal/models"
	"github.com/fieldpost/fieldpost/internal/notify"
)

const (
	// storedNameFormat prefixes saved uploads, matching the layout the
	// uploads directory has always used.
	storedNameFormat = "20060102_150405"

	// maxFieldBytes caps a single text field. Attachments belong in file
	// parts, not values.
	maxFieldBytes = 1 << 20
)

type submitResponse struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// handleSubmit accepts one form submission, multipart or urlencoded.
// The insert commits before the device hears 200: a phone that walks out
// of wifi range after the reply cannot lose data.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	formType, data, files, err := s.readSubmission(r)
	if err != nil {
		// Drop any attachments that landed before the failure
		for _, f := range files {
			os.Remove(f.Path)
		}
		s.metrics.RecordRejected()

		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge,
				fmt.Sprintf("request exceeds %d bytes", mbe.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	sub := &models.Submission{
		FormType:  formType,
		Data:      data,
		Files:     files,
		SourceIP:  clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
	if err := s.store.Insert(sub); err != nil {
		logFor(r.Context()).Error("insert submission", "error", err)
		for _, f := range files {
			os.Remove(f.Path)
		}
		s.metrics.RecordRejected()
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "could not store submission")
		return
	}

	var uploadBytes int64
	for _, f := range files {
		uploadBytes += f.SizeBytes
	}
	s.metrics.RecordAccepted(uploadBytes)
	logFor(r.Context()).Info("submission accepted",
		"id", sub.ID, "form_type", sub.FormType, "fields", len(data), "files", len(files))
	s.notifier.Announce(notify.SubmissionReceived(sub))

	writeJSON(w, http.StatusOK, submitResponse{Success: true, ID: sub.ID, Message: "submission received"})
}

// readSubmission parses the request into form type, ordered fields and
// saved attachments. On error the returned files are the attachments
// already written; the caller removes them.
func (s *Server) readSubmission(r *http.Request) (string, models.FormData, []models.FileRef, error) {
	mr, err := r.MultipartReader()
	switch {
	case err == nil:
		return s.readMultipart(mr)
	case errors.Is(err, http.ErrNotMultipart):
		formType, data, err := readURLEncoded(r)
		return formType, data, nil, err
	default:
		return "", nil, nil, fmt.Errorf("read form: %w", err)
	}
}

// readMultipart walks the parts in stream order, so the stored field
// order is exactly the order the device sent.
func (s *Server) readMultipart(mr *multipart.Reader) (string, models.FormData, []models.FileRef, error) {
	var (
		formType string
		data     models.FormData
		files    []models.FileRef
	)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return formType, data, files, fmt.Errorf("read form: %w", err)
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		if part.FileName() == "" {
			value, err := readFieldValue(part)
			part.Close()
			if err != nil {
				return formType, data, files, err
			}
			if name == "form_type" {
				formType = strings.TrimSpace(value)
			} else {
				data = append(data, models.Field{Name: name, Value: value})
			}
			continue
		}

		ref, err := s.saveUpload(part)
		part.Close()
		if err != nil {
			return formType, data, files, err
		}
		if ref != nil {
			files = append(files, *ref)
		}
	}

	return formType, data, files, nil
}

func readFieldValue(part *multipart.Part) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", fmt.Errorf("read field: %w", err)
	}
	if len(raw) > maxFieldBytes {
		return "", fmt.Errorf("field %q too large", part.FormName())
	}
	return string(raw), nil
}

// readURLEncoded parses a x-www-form-urlencoded body by hand: stdlib
// ParseForm returns a map and loses the field order.
func readURLEncoded(r *http.Request) (string, models.FormData, error) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		return "", nil, fmt.Errorf("unsupported content type %q", ct)
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read form: %w", err)
	}

	var (
		formType string
		data     models.FormData
	)
	for _, pair := range strings.Split(string(raw), "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return "", nil, fmt.Errorf("bad form key %q", k)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return "", nil, fmt.Errorf("bad form value for %q", key)
		}
		if key == "" {
			continue
		}
		if key == "form_type" {
			formType = strings.TrimSpace(value)
			continue
		}
		data = append(data, models.Field{Name: key, Value: value})
	}
	return formType, data, nil
}

// saveUpload streams one file part into the uploads directory. Hostile
// names are reduced to a safe subset; a name with nothing left is dropped.
func (s *Server) saveUpload(part *multipart.Part) (*models.FileRef, error) {
	original := sanitizeFilename(part.FileName())
	if original == "" {
		io.Copy(io.Discard, part)
		return nil, nil
	}

	stored := time.Now().Format(storedNameFormat) + "_" + original
	f, storedAs, err := createExclusive(s.config.UploadsDir(), stored)
	if err != nil {
		return nil, fmt.Errorf("save upload %q: %w", original, err)
	}
	path := filepath.Join(s.config.UploadsDir(), storedAs)

	n, err := io.Copy(f, part)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("save upload %q: %w", original, err)
	}

	return &models.FileRef{
		OriginalName: original,
		StoredName:   storedAs,
		Path:         path,
		SizeBytes:    n,
	}, nil
}

// createExclusive opens a new file, appending a counter when two uploads
// in the same second share a name.
func createExclusive(dir, name string) (*os.File, string, error) {
	candidate := name
	for i := 0; ; i++ {
		if i > 0 {
			ext := filepath.Ext(name)
			candidate = strings.TrimSuffix(name, ext) + fmt.Sprintf("_%d", i) + ext
		}
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) || i >= 100 {
			return nil, "", err
		}
	}
}

// sanitizeFilename strips a client-supplied name down to a safe basename:
// path components removed, characters outside [a-zA-Z0-9._-] dropped,
// spaces become underscores, leading dots removed.
func sanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return ""
	}
	return out
}
