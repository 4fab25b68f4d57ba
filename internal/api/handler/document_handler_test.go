package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
	"github.com/documentai/docai/internal/infrastructure/queue"
)

type stubDocuments struct {
	mu       sync.Mutex
	uploaded []ports.UploadInput
	chats    int
	uploadFn func(in ports.UploadInput) (*domain.UploadResult, error)
	files    []domain.ProcessedFile
	deleted  []string
	chatFn   func(input, fileID string) (domain.ChatMessage, error)
}

func (s *stubDocuments) Upload(_ context.Context, in ports.UploadInput, _ ports.ProgressFunc) (*domain.UploadResult, error) {
	s.mu.Lock()
	s.uploaded = append(s.uploaded, in)
	s.mu.Unlock()
	if s.uploadFn != nil {
		return s.uploadFn(in)
	}
	return &domain.UploadResult{DownloadURL: "/dl/" + in.Name, Filename: "processed_" + in.Name}, nil
}

func (s *stubDocuments) ListFiles(context.Context) ([]domain.ProcessedFile, error) {
	return s.files, nil
}

func (s *stubDocuments) DeleteFile(_ context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrNoFileSelected
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubDocuments) Download(context.Context, string, io.Writer) (int64, error) {
	return 0, nil
}

func (s *stubDocuments) NewChat(fileID string) ports.Conversation {
	s.chats++
	return &stubConversation{fileID: fileID, fn: s.chatFn}
}

type stubConversation struct {
	fileID   string
	fn       func(input, fileID string) (domain.ChatMessage, error)
	messages []domain.ChatMessage
}

func (c *stubConversation) Send(_ context.Context, input string) (domain.ChatMessage, error) {
	c.messages = append(c.messages, domain.ChatMessage{Content: input, IsUser: true})
	reply, err := c.fn(input, c.fileID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	c.messages = append(c.messages, reply)
	return reply, nil
}

func (c *stubConversation) Messages() []domain.ChatMessage {
	return append([]domain.ChatMessage(nil), c.messages...)
}

func newDocumentHandler(docs *stubDocuments) *DocumentHandler {
	return NewDocumentHandler(docs, queue.NewDispatcher(2, docs, zerolog.Nop()))
}

func multipartContext(t *testing.T, fields map[string]string, files map[string][]byte) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	return newTestEcho().NewContext(req, rec), rec
}

func TestDocumentHandler_Upload(t *testing.T) {
	docs := &stubDocuments{}
	h := newDocumentHandler(docs)

	c, rec := multipartContext(t, map[string]string{"beautify": "false"}, map[string][]byte{
		"a.pdf": []byte("%PDF-1.4 a"),
		"b.pdf": []byte("%PDF-1.4 b"),
	})
	if err := h.Upload(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", resp.Results)
	}
	for _, r := range resp.Results {
		if r.Error != "" || r.Filename != "processed_"+r.Name {
			t.Fatalf("unexpected result %+v", r)
		}
	}
	for _, in := range docs.uploaded {
		if in.Beautify {
			t.Fatalf("beautify=false was not honoured for %s", in.Name)
		}
	}
}

func TestDocumentHandler_Upload_SingleFailureReturnsError(t *testing.T) {
	docs := &stubDocuments{uploadFn: func(ports.UploadInput) (*domain.UploadResult, error) {
		return nil, domain.ErrUnsupportedType
	}}
	h := newDocumentHandler(docs)

	c, _ := multipartContext(t, nil, map[string][]byte{"notes.txt": []byte("hello")})
	if err := h.Upload(c); !errors.Is(err, domain.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if !docs.uploaded[0].Beautify {
		t.Fatalf("beautify should default to true")
	}
}

func TestDocumentHandler_Upload_NoFile(t *testing.T) {
	h := newDocumentHandler(&stubDocuments{})

	c, _ := multipartContext(t, map[string]string{"beautify": "true"}, nil)
	if err := h.Upload(c); !errors.Is(err, domain.ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
}

func TestDocumentHandler_ListAndDelete(t *testing.T) {
	docs := &stubDocuments{files: []domain.ProcessedFile{{ID: "f1", Name: "a.pdf", Status: domain.FileCompleted}}}
	h := newDocumentHandler(docs)
	e := newTestEcho()

	c, rec := jsonContext(e, http.MethodGet, "/files", "")
	if err := h.ListFiles(c); err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"id":"f1"`) {
		t.Fatalf("unexpected list body %s", rec.Body.String())
	}

	c, rec = jsonContext(e, http.MethodDelete, "/files/f1", "")
	c.SetParamNames("id")
	c.SetParamValues("f1")
	if err := h.DeleteFile(c); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if rec.Code != http.StatusNoContent || len(docs.deleted) != 1 || docs.deleted[0] != "f1" {
		t.Fatalf("unexpected delete: code=%d deleted=%v", rec.Code, docs.deleted)
	}
}

func TestDocumentHandler_ChatKeepsTranscriptPerFile(t *testing.T) {
	docs := &stubDocuments{chatFn: func(input, fileID string) (domain.ChatMessage, error) {
		return domain.ChatMessage{Content: fileID + ": " + input}, nil
	}}
	h := newDocumentHandler(docs)
	e := newTestEcho()

	for _, msg := range []string{"first?", "second?"} {
		c, rec := jsonContext(e, http.MethodPost, "/chat", `{"message":"`+msg+`","file_id":"f1"}`)
		if err := h.Chat(c); err != nil {
			t.Fatalf("chat error: %v", err)
		}
		var resp chatResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if resp.Response != "f1: "+msg {
			t.Fatalf("unexpected reply %q", resp.Response)
		}
	}
	if docs.chats != 1 {
		t.Fatalf("expected one conversation for f1, got %d", docs.chats)
	}

	c, rec := jsonContext(e, http.MethodGet, "/chat/f1", "")
	c.SetParamNames("fileID")
	c.SetParamValues("f1")
	if err := h.Transcript(c); err != nil {
		t.Fatalf("transcript error: %v", err)
	}
	var tr transcriptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(tr.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(tr.Messages))
	}
}

func TestDocumentHandler_Chat_RequiresFile(t *testing.T) {
	h := newDocumentHandler(&stubDocuments{})

	c, _ := jsonContext(newTestEcho(), http.MethodPost, "/chat", `{"message":"hi"}`)
	if code := httpCode(t, h.Chat(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestDocumentHandler_SessionChangedDropsTranscripts(t *testing.T) {
	docs := &stubDocuments{chatFn: func(input, _ string) (domain.ChatMessage, error) {
		return domain.ChatMessage{Content: "ok"}, nil
	}}
	h := newDocumentHandler(docs)
	e := newTestEcho()

	alice := &domain.Identity{ID: "u-alice", Email: "alice@example.com"}
	bob := &domain.Identity{ID: "u-bob", Email: "bob@example.com"}

	chat := func() {
		t.Helper()
		c, _ := jsonContext(e, http.MethodPost, "/chat", `{"message":"hi","file_id":"f1"}`)
		if err := h.Chat(c); err != nil {
			t.Fatalf("chat error: %v", err)
		}
	}
	messages := func() int {
		t.Helper()
		c, rec := jsonContext(e, http.MethodGet, "/chat/f1", "")
		c.SetParamNames("fileID")
		c.SetParamValues("f1")
		if err := h.Transcript(c); err != nil {
			t.Fatalf("transcript error: %v", err)
		}
		var tr transcriptResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		return len(tr.Messages)
	}

	h.SessionChanged(ports.SessionState{User: alice})
	chat()

	// Loading transitions for the same identity keep the transcript.
	h.SessionChanged(ports.SessionState{User: alice, Loading: true})
	if n := messages(); n != 2 {
		t.Fatalf("expected 2 messages, got %d", n)
	}

	h.SessionChanged(ports.SessionState{})
	if n := messages(); n != 0 {
		t.Fatalf("logout kept %d messages", n)
	}

	h.SessionChanged(ports.SessionState{User: alice})
	chat()
	h.SessionChanged(ports.SessionState{User: bob})
	if n := messages(); n != 0 {
		t.Fatalf("account switch kept %d messages", n)
	}
}
