package handoff_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/voicerec/internal/handoff"
)

func TestHTTP_PostsMultipartFile(t *testing.T) {
	t.Parallel()

	type received struct {
		field, filename, contentType, auth string
		data                               []byte
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		part, err := mr.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(part)
		got <- received{
			field:       part.FormName(),
			filename:    part.FileName(),
			contentType: part.Header.Get("Content-Type"),
			auth:        r.Header.Get("Authorization"),
			data:        data,
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	h := handoff.NewHTTP(srv.URL,
		handoff.WithField("audio"),
		handoff.WithHeaders(map[string]string{"Authorization": "Bearer t0k"}),
		handoff.WithHTTPClient(srv.Client()),
	)
	if err := h.Deliver(context.Background(), testArtifact); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	r := <-got
	if r.field != "audio" {
		t.Errorf("field = %q, want audio", r.field)
	}
	if r.filename != testArtifact.Name {
		t.Errorf("filename = %q, want %q", r.filename, testArtifact.Name)
	}
	if r.contentType != testArtifact.ContentType {
		t.Errorf("part Content-Type = %q, want %q", r.contentType, testArtifact.ContentType)
	}
	if r.auth != "Bearer t0k" {
		t.Errorf("Authorization = %q", r.auth)
	}
	if string(r.data) != string(testArtifact.Data) {
		t.Errorf("data = %q", r.data)
	}
}

func TestHTTP_DefaultField(t *testing.T) {
	t.Parallel()
	field := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hdr, err := r.FormFile("file")
		if err != nil {
			field <- ""
			return
		}
		field <- hdr.Filename
	}))
	t.Cleanup(srv.Close)

	if err := handoff.NewHTTP(srv.URL).Deliver(context.Background(), testArtifact); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := <-field; got != testArtifact.Name {
		t.Errorf("file field filename = %q, want %q", got, testArtifact.Name)
	}
}

func TestHTTP_NonSuccessStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusRequestEntityTooLarge)
	}))
	t.Cleanup(srv.Close)

	err := handoff.NewHTTP(srv.URL).Deliver(context.Background(), testArtifact)
	if err == nil {
		t.Fatal("expected error for 413")
	}
	if !strings.Contains(err.Error(), "413") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error = %v", err)
	}
}

func TestHTTP_Unreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := handoff.NewHTTP(url).Deliver(context.Background(), testArtifact); err == nil {
		t.Fatal("expected error for closed server")
	}
}
