package handoff

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/MrWong99/voicerec/pkg/audio"
)

// maxErrorBody bounds how much of a rejected response is quoted in errors.
const maxErrorBody = 512

// HTTP posts artifacts as a multipart/form-data upload with a single file
// part. Any response outside 2xx is an error.
type HTTP struct {
	url     string
	field   string
	headers map[string]string
	client  *http.Client
}

var _ Handoff = (*HTTP)(nil)

// HTTPOption configures an [HTTP] handoff.
type HTTPOption func(*HTTP)

// WithField sets the form field name of the file part. The default is "file".
func WithField(name string) HTTPOption {
	return func(h *HTTP) {
		if name != "" {
			h.field = name
		}
	}
}

// WithHeaders adds request headers, for example authorization.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(h *HTTP) { h.headers = headers }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// NewHTTP returns an HTTP handoff posting to url.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	h := &HTTP{url: url, field: "file", client: http.DefaultClient}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements [Handoff].
func (h *HTTP) Name() string { return "http" }

// Deliver implements [Handoff].
func (h *HTTP) Deliver(ctx context.Context, a audio.Artifact) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part := textproto.MIMEHeader{}
	part.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     h.field,
		"filename": a.Name,
	}))
	part.Set("Content-Type", a.ContentType)
	w, err := mw.CreatePart(part)
	if err != nil {
		return fmt.Errorf("handoff: http: create part: %w", err)
	}
	if _, err := w.Write(a.Data); err != nil {
		return fmt.Errorf("handoff: http: write part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("handoff: http: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, &body)
	if err != nil {
		return fmt.Errorf("handoff: http: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("handoff: http: post %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("handoff: http: %s returned %s: %s", h.url, resp.Status, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	slog.InfoContext(ctx, "recording uploaded", "url", h.url, "name", a.Name, "bytes", a.Size())
	return nil
}
