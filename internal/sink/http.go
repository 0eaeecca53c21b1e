package sink

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/bjjsocial/bjjsocial/internal/exporter"
)

// ErrAlreadyWritten is returned when an HTTP sink receives a second file.
var ErrAlreadyWritten = errors.New("sink: response already written")

// HTTP writes a single file to a response as an attachment.
type HTTP struct {
	w      http.ResponseWriter
	header http.Header

	mu      sync.Mutex
	written string
}

// NewHTTP creates a sink writing to w.
func NewHTTP(w http.ResponseWriter) *HTTP {
	return &HTTP{w: w, header: make(http.Header)}
}

// SetHeader adds a response header applied only when a file is written.
func (h *HTTP) SetHeader(key, value string) {
	h.header.Set(key, value)
}

// Deliver writes f as the response body. Only the first file is accepted.
func (h *HTTP) Deliver(_ context.Context, f exporter.File) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.written != "" {
		return ErrAlreadyWritten
	}
	if err := validateName(f.Name); err != nil {
		return err
	}

	h.written = f.Name
	for k, v := range h.header {
		h.w.Header()[k] = v
	}
	return WriteAttachment(h.w, http.StatusOK, f)
}

// Written returns the name of the written file, or "".
func (h *HTTP) Written() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.written
}

// WriteAttachment writes f with a Content-Disposition attachment header.
func WriteAttachment(w http.ResponseWriter, status int, f exporter.File) error {
	contentType := f.ContentType
	if contentType == "" {
		contentType = exporter.ContentType
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Body)))
	w.WriteHeader(status)

	_, err := w.Write(f.Body)
	return err
}

// Ensure HTTP implements exporter.Sink.
var _ exporter.Sink = (*HTTP)(nil)
