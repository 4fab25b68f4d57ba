package ports

import (
	"context"
	"io"

	"github.com/documentai/docai/internal/core/domain"
)

// UploadInput is one document handed to the processing backend.
type UploadInput struct {
	Name     string
	Content  []byte
	Beautify bool
}

// DocumentClient is the authenticated document API.
type DocumentClient interface {
	Upload(ctx context.Context, in UploadInput) (*domain.UploadResult, error)
	ListFiles(ctx context.Context) ([]domain.ProcessedFile, error)
	DeleteFile(ctx context.Context, id string) error
	Chat(ctx context.Context, message, fileID string) (string, error)
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// ProgressFunc receives upload progress as a percentage in [0, 100].
type ProgressFunc func(percent int)

// Conversation is a chat transcript about one document.
type Conversation interface {
	Send(ctx context.Context, input string) (domain.ChatMessage, error)
	Messages() []domain.ChatMessage
}

// DocumentService is the use-case surface consumed by the agent and CLI.
type DocumentService interface {
	Upload(ctx context.Context, in UploadInput, progress ProgressFunc) (*domain.UploadResult, error)
	ListFiles(ctx context.Context) ([]domain.ProcessedFile, error)
	DeleteFile(ctx context.Context, id string) error
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
	NewChat(fileID string) Conversation
}
