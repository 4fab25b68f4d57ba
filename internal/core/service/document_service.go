package service

import (
	"context"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
)

// MaxUploadSize is the largest document accepted for processing.
const MaxUploadSize = 10 << 20

const (
	defaultProgressInterval = 500 * time.Millisecond
	progressStep            = 10
	progressCap             = 90
)

var uploadTypes = []string{"application/pdf", "image/jpeg", "image/png"}

var _ ports.DocumentService = (*DocumentService)(nil)

// DocumentService validates uploads and drives the authenticated document API.
type DocumentService struct {
	client           ports.DocumentClient
	log              zerolog.Logger
	progressInterval time.Duration
}

// NewDocumentService returns a DocumentService. A non-positive interval uses
// the default progress tick.
func NewDocumentService(client ports.DocumentClient, log zerolog.Logger, progressInterval time.Duration) *DocumentService {
	if progressInterval <= 0 {
		progressInterval = defaultProgressInterval
	}
	return &DocumentService{
		client:           client,
		log:              log.With().Str("component", "documents").Logger(),
		progressInterval: progressInterval,
	}
}

// ValidateUpload checks the sniffed content type and the size of a document
// and returns the detected MIME type.
func ValidateUpload(content []byte) (string, error) {
	if len(content) == 0 {
		return "", domain.ErrNoFile
	}
	mtype := mimetype.Detect(content)
	if !mimetype.EqualsAny(mtype.String(), uploadTypes...) {
		return mtype.String(), domain.ErrUnsupportedType
	}
	if len(content) > MaxUploadSize {
		return mtype.String(), domain.ErrFileTooLarge
	}
	return mtype.String(), nil
}

// Upload validates and sends a document for processing. progress, when set,
// receives simulated progress while the request is pending and 100 once the
// backend has answered successfully.
func (s *DocumentService) Upload(ctx context.Context, in ports.UploadInput, progress ports.ProgressFunc) (*domain.UploadResult, error) {
	mtype, err := ValidateUpload(in.Content)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(int) {}
	}

	progress(0)
	stop := s.simulateProgress(progress)
	res, err := s.client.Upload(ctx, in)
	stop()
	if err != nil {
		s.log.Warn().Err(err).Str("file", in.Name).Msg("processing failed")
		return nil, err
	}
	progress(100)

	s.log.Info().
		Str("file", in.Name).
		Str("type", mtype).
		Bool("beautify", in.Beautify).
		Str("result", res.Filename).
		Msg("document processed")
	return res, nil
}

func (s *DocumentService) simulateProgress(progress ports.ProgressFunc) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.progressInterval)
		defer ticker.Stop()

		pct := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if pct >= progressCap {
					return
				}
				pct += progressStep
				progress(pct)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

// ListFiles returns the caller's file history.
func (s *DocumentService) ListFiles(ctx context.Context) ([]domain.ProcessedFile, error) {
	files, err := s.client.ListFiles(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("load file history")
		return nil, err
	}
	return files, nil
}

// DeleteFile removes a file from the caller's history.
func (s *DocumentService) DeleteFile(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrNoFileSelected
	}
	if err := s.client.DeleteFile(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("file_id", id).Msg("delete file")
		return err
	}
	return nil
}

// Download streams a processed document into w.
func (s *DocumentService) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	return s.client.Download(ctx, url, w)
}

// NewChat starts a conversation about the given file.
func (s *DocumentService) NewChat(fileID string) ports.Conversation {
	return &ChatSession{client: s.client, log: s.log, fileID: fileID, now: time.Now}
}

// ChatSession keeps the transcript of one conversation.
type ChatSession struct {
	client ports.DocumentClient
	log    zerolog.Logger
	fileID string
	now    func() time.Time

	mu       sync.Mutex
	messages []domain.ChatMessage
}

// Send appends the user's message, asks the backend and appends the reply.
// The user's message stays in the transcript when the backend fails.
func (c *ChatSession) Send(ctx context.Context, input string) (domain.ChatMessage, error) {
	if strings.TrimSpace(input) == "" {
		return domain.ChatMessage{}, domain.ErrEmptyMessage
	}
	if c.fileID == "" {
		return domain.ChatMessage{}, domain.ErrNoFileSelected
	}

	c.append(domain.ChatMessage{ID: uuid.NewString(), Content: input, IsUser: true, Timestamp: c.now()})

	answer, err := c.client.Chat(ctx, input, c.fileID)
	if err != nil {
		c.log.Warn().Err(err).Str("file_id", c.fileID).Msg("chat request failed")
		return domain.ChatMessage{}, err
	}

	reply := domain.ChatMessage{ID: uuid.NewString(), Content: answer, Timestamp: c.now()}
	c.append(reply)
	return reply, nil
}

func (c *ChatSession) append(m domain.ChatMessage) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
}

// Messages returns a copy of the transcript.
func (c *ChatSession) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with 1024-based units and at most two
// decimals, e.g. "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
