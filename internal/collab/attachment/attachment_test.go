package attachment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edcollab/edcollab/internal/collab/restclient"
	"github.com/edcollab/edcollab/internal/platform/csrf"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		size     int64
		reason   string
	}{
		{"accepts 49MiB pdf", "report.pdf", 49 * 1024 * 1024, ""},
		{"rejects 51MiB file", "report.pdf", 51 * 1024 * 1024, "file exceeds 50MB"},
		{"rejects exe regardless of size", "tool.exe", 10, "file type not permitted"},
		{"rejects missing name", "", 10, "file name is required"},
		{"accepts image", "xray.png", 2048, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.fileName, tt.size)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("expected accept, got %v", err)
				}
				return
			}
			var verr *restclient.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, verr.Reason)
			}
		})
	}
}

func newUploadServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: csrf.CookieName, Value: "tok", Path: "/"})
		w.Write([]byte(`{"csrfToken":"tok"}`))
	})
	mux.HandleFunc("/api/attachments", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(restclient.New(srv.URL))
}

func TestUpload_SendsMultipartForm(t *testing.T) {
	c := newUploadServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("case_id"); got != "42" {
			t.Errorf("expected case_id 42, got %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "scan.pdf" {
			t.Errorf("expected filename scan.pdf, got %q", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"abc","original_name":"scan.pdf","kind":"pdf","size_bytes":13}`))
	})

	att, err := c.Upload(context.Background(), 42, 7, "scan.pdf", 13, strings.NewReader("%PDF-1.4 data"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if att.ID != "abc" || att.Kind != "pdf" {
		t.Errorf("unexpected metadata %+v", att)
	}
}

func TestUpload_ValidationBlocksNetworkCall(t *testing.T) {
	called := false
	c := newUploadServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.Upload(context.Background(), 42, 7, "tool.exe", 10, strings.NewReader("x"))
	var verr *restclient.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if called {
		t.Error("expected no network call for invalid file")
	}
}

func TestUpload_ServerErrorSurfaced(t *testing.T) {
	c := newUploadServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		w.Write([]byte(`{"error":"file type not permitted"}`))
	})

	_, err := c.Upload(context.Background(), 42, 7, "scan.pdf", 4, strings.NewReader("data"))
	var terr *restclient.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", terr.StatusCode)
	}
	if !strings.Contains(terr.Body, "file type not permitted") {
		t.Errorf("expected verbatim error body, got %q", terr.Body)
	}
}
