package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/documentai/docai/internal/api/metrics"
	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
	"github.com/documentai/docai/internal/core/service"
	"github.com/documentai/docai/internal/infrastructure/queue"
)

// BatchUploader uploads several documents and reports one outcome per input.
type BatchUploader interface {
	Run(ctx context.Context, inputs []ports.UploadInput, progress queue.ProgressFunc) []queue.Outcome
}

// DocumentHandler proxies document operations to the remote API with the
// session credential attached.
type DocumentHandler struct {
	documents ports.DocumentService
	batch     BatchUploader

	mu            sync.Mutex
	owner         string
	conversations map[string]ports.Conversation
}

func NewDocumentHandler(documents ports.DocumentService, batch BatchUploader) *DocumentHandler {
	return &DocumentHandler{
		documents:     documents,
		batch:         batch,
		conversations: make(map[string]ports.Conversation),
	}
}

// SessionChanged drops the chat transcripts whenever the signed-in identity
// goes away or changes, so one account never sees another's questions.
func (h *DocumentHandler) SessionChanged(state ports.SessionState) {
	owner := ""
	if state.User != nil {
		owner = state.User.ID
		if owner == "" {
			owner = state.User.Email
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if owner == h.owner {
		return
	}
	h.owner = owner
	clear(h.conversations)
}

type filesResponse struct {
	Files []domain.ProcessedFile `json:"files"`
}

type uploadItem struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Error       string `json:"error,omitempty"`
}

type uploadResponse struct {
	Results []uploadItem `json:"results"`
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
	FileID  string `json:"file_id" validate:"required"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type transcriptResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// ListFiles returns the processed documents of the signed-in user.
//
// @Summary      List files
// @Tags         documents
// @Produce      json
// @Success      200  {object}  filesResponse
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /files [get]
func (h *DocumentHandler) ListFiles(c echo.Context) error {
	files, err := h.documents.ListFiles(c.Request().Context())
	count("list", err)
	if err != nil {
		return err
	}
	if files == nil {
		files = []domain.ProcessedFile{}
	}
	return c.JSON(http.StatusOK, filesResponse{Files: files})
}

// DeleteFile removes a processed document.
//
// @Summary      Delete file
// @Tags         documents
// @Param        id   path  string  true  "File ID"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /files/{id} [delete]
func (h *DocumentHandler) DeleteFile(c echo.Context) error {
	id := c.Param("id")
	err := h.documents.DeleteFile(c.Request().Context(), id)
	count("delete", err)
	if err != nil {
		return err
	}

	h.mu.Lock()
	delete(h.conversations, id)
	h.mu.Unlock()

	return c.NoContent(http.StatusNoContent)
}

// Upload sends one or more documents for processing.
//
// @Summary      Upload documents
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file      formData  file    true   "Document (pdf, jpeg or png); repeat for several"
// @Param        beautify  formData  bool    false  "Apply AI beautification (default true)"
// @Success      200  {object}  uploadResponse
// @Failure      400  {object}  map[string]string
// @Failure      413  {object}  map[string]string
// @Failure      415  {object}  map[string]string
// @Router       /upload [post]
func (h *DocumentHandler) Upload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return domain.ErrNoFile
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		return domain.ErrNoFile
	}

	beautify := true
	if v := c.FormValue("beautify"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "beautify must be a boolean")
		}
		beautify = b
	}

	inputs := make([]ports.UploadInput, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > service.MaxUploadSize {
			return domain.ErrFileTooLarge
		}
		content, err := readPart(fh)
		if err != nil {
			return err
		}
		inputs = append(inputs, ports.UploadInput{Name: fh.Filename, Content: content, Beautify: beautify})
	}

	outcomes := h.batch.Run(c.Request().Context(), inputs, nil)
	for _, o := range outcomes {
		count("upload", o.Err)
	}

	// A single failed document reports its own status.
	if len(outcomes) == 1 && outcomes[0].Err != nil {
		return outcomes[0].Err
	}

	resp := uploadResponse{Results: make([]uploadItem, 0, len(outcomes))}
	for _, o := range outcomes {
		item := uploadItem{Name: o.Name}
		if o.Err != nil {
			item.Error = o.Err.Error()
		} else {
			item.DownloadURL = o.Result.DownloadURL
			item.Filename = o.Result.Filename
		}
		resp.Results = append(resp.Results, item)
	}
	return c.JSON(http.StatusOK, resp)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, domain.ErrNoFile
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, service.MaxUploadSize+1))
	if err != nil {
		return nil, domain.ErrNoFile
	}
	return content, nil
}

// Chat asks a question about a processed document.
//
// @Summary      Chat about a document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        body  body      chatRequest  true  "Question and file"
// @Success      200   {object}  chatResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /chat [post]
func (h *DocumentHandler) Chat(c echo.Context) error {
	var req chatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	reply, err := h.conversation(req.FileID).Send(c.Request().Context(), req.Message)
	count("chat", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chatResponse{Response: reply.Content})
}

// Transcript returns the chat history kept for a document.
//
// @Summary      Chat transcript
// @Tags         documents
// @Produce      json
// @Param        fileID  path      string  true  "File ID"
// @Success      200     {object}  transcriptResponse
// @Router       /chat/{fileID} [get]
func (h *DocumentHandler) Transcript(c echo.Context) error {
	h.mu.Lock()
	conv, ok := h.conversations[c.Param("fileID")]
	h.mu.Unlock()

	msgs := []domain.ChatMessage{}
	if ok {
		msgs = conv.Messages()
	}
	return c.JSON(http.StatusOK, transcriptResponse{Messages: msgs})
}

func (h *DocumentHandler) conversation(fileID string) ports.Conversation {
	h.mu.Lock()
	defer h.mu.Unlock()

	conv, ok := h.conversations[fileID]
	if !ok {
		conv = h.documents.NewChat(fileID)
		h.conversations[fileID] = conv
	}
	return conv
}

func count(operation string, err error) {
	metrics.DocumentRequestsTotal.WithLabelValues(operation, service.Outcome(err)).Inc()
}
