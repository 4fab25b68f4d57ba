package domain

import "time"

// FileStatus is the processing state reported by the document API.
type FileStatus string

const (
	FileCompleted  FileStatus = "completed"
	FileProcessing FileStatus = "processing"
	FileFailed     FileStatus = "failed"
)

// ProcessedFile is one entry of the caller's file history.
type ProcessedFile struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	OriginalName string     `json:"originalName"`
	ProcessedAt  time.Time  `json:"processedAt"`
	FileSize     int64      `json:"fileSize"`
	DownloadURL  string     `json:"downloadUrl"`
	Status       FileStatus `json:"status"`
}

// UploadResult is returned once the backend has processed an upload.
type UploadResult struct {
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
}

// ChatMessage is a single turn in a conversation about a document.
type ChatMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}
