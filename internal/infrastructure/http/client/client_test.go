package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
)

type staticCreds string

func (s staticCreds) Credential() (string, bool) { return string(s), s != "" }

func TestAuthClient_Login_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("auth requests must not carry a bearer token")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.com" || body["password"] != "pw" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = io.WriteString(w, `{"user":{"id":"1","email":"a@b.com"}}`)
	}))
	defer srv.Close()

	c, err := NewAuthClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	res, err := c.Login(context.Background(), "a@b.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.User != (domain.Identity{ID: "1", Email: "a@b.com"}) || res.Token != "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAuthClient_Signup_OmitsEmptyName(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/signup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"token":"jwt","user":{"id":"2","email":"n@b.com","name":"Nia"}}`)
	}))
	defer srv.Close()

	c, _ := NewAuthClient(srv.URL, srv.Client())
	if _, err := c.Signup(context.Background(), "n@b.com", "pw", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	res, err := c.Signup(context.Background(), "n@b.com", "pw", "Nia")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, ok := bodies[0]["name"]; ok {
		t.Fatalf("empty name must be omitted: %v", bodies[0])
	}
	if bodies[1]["name"] != "Nia" {
		t.Fatalf("expected name in body: %v", bodies[1])
	}
	if res.Token != "jwt" || res.User.Name != "Nia" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAuthClient_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid credentials"}`)
	}))
	defer srv.Close()

	c, _ := NewAuthClient(srv.URL, srv.Client())
	_, err := c.Login(context.Background(), "a@b.com", "wrong")

	var se *domain.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized || se.Message != "invalid credentials" {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if !errors.Is(err, domain.ErrRejected) {
		t.Fatalf("expected ErrRejected")
	}
}

func TestAuthClient_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":  `<html>`,
		"no user":   `{"token":"x"}`,
		"no email":  `{"user":{"id":"1"}}`,
		"null user": `{"user":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			c, _ := NewAuthClient(srv.URL, srv.Client())
			if _, err := c.Login(context.Background(), "a@b.com", "pw"); !errors.Is(err, domain.ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestAuthClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := NewAuthClient(url, NewHTTPClient(time.Second))
	_, err := c.Login(context.Background(), "a@b.com", "pw")
	if !errors.Is(err, domain.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	if errors.Is(err, domain.ErrRejected) {
		t.Fatalf("transport failure must not be a rejection")
	}
}

func TestAuthClient_BasePathPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gateway/api/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"user":{"id":"1","email":"a@b.com"}}`)
	}))
	defer srv.Close()

	c, _ := NewAuthClient(srv.URL+"/gateway", srv.Client())
	if _, err := c.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestNewAuthClient_InvalidBase(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative"} {
		if _, err := NewAuthClient(raw, nil); err == nil {
			t.Fatalf("expected error for base %q", raw)
		}
	}
}

func TestDocumentClient_NoCredential(t *testing.T) {
	c, _ := NewDocumentClient("http://127.0.0.1:1", nil, staticCreds(""), 0)

	if _, err := c.ListFiles(context.Background()); !errors.Is(err, domain.ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestDocumentClient_Upload(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer: %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("beautify") != "false" {
			t.Errorf("unexpected beautify %q", r.FormValue("beautify"))
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		got, _ := io.ReadAll(f)
		if fh.Filename != "scan.png" || !bytes.Equal(got, png) {
			t.Errorf("unexpected file %s (%d bytes)", fh.Filename, len(got))
		}
		if fh.Header.Get("Content-Type") != "image/png" {
			t.Errorf("unexpected part content type %q", fh.Header.Get("Content-Type"))
		}
		_, _ = io.WriteString(w, `{"download_url":"/files/scan.txt","filename":"scan.txt"}`)
	}))
	defer srv.Close()

	c, _ := NewDocumentClient(srv.URL, srv.Client(), staticCreds("tok"), 0)
	res, err := c.Upload(context.Background(), ports.UploadInput{Name: "scan.png", Content: png})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.DownloadURL != "/files/scan.txt" || res.Filename != "scan.txt" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDocumentClient_FilesAndChat(t *testing.T) {
	var deleted string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/files", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"files":[{"id":"f1","name":"a.txt","originalName":"a.pdf",
			"processedAt":"2024-01-15T00:00:00Z","fileSize":2048,"downloadUrl":"/d/f1","status":"completed"}]}`)
	})
	mux.HandleFunc("/api/files/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		deleted = strings.TrimPrefix(r.URL.Path, "/api/files/")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["file_id"] != "f1" {
			t.Errorf("unexpected file_id %q", body["file_id"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "re: " + body["message"]})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := NewDocumentClient(srv.URL, srv.Client(), staticCreds("tok"), 100)

	files, err := c.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 || files[0].Status != domain.FileCompleted || files[0].FileSize != 2048 {
		t.Fatalf("unexpected files %+v", files)
	}
	if !files[0].ProcessedAt.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected processedAt %v", files[0].ProcessedAt)
	}

	if err := c.DeleteFile(context.Background(), "f1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != "f1" {
		t.Fatalf("unexpected deleted id %q", deleted)
	}

	answer, err := c.Chat(context.Background(), "hello", "f1")
	if err != nil || answer != "re: hello" {
		t.Fatalf("unexpected chat: %q %v", answer, err)
	}
}

func TestDocumentClient_Download(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "processed text")
	}))
	defer srv.Close()

	c, _ := NewDocumentClient(srv.URL, srv.Client(), staticCreds("tok"), 0)

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), "/files/a.txt", &buf)
	if err != nil || n != int64(len("processed text")) || buf.String() != "processed text" {
		t.Fatalf("unexpected download: %d %q %v", n, buf.String(), err)
	}
	if sawAuth != "Bearer tok" {
		t.Fatalf("expected bearer on same-host download, got %q", sawAuth)
	}

	if _, err := c.Download(context.Background(), "/missing", io.Discard); !errors.Is(err, domain.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}
