package domain

import (
	"errors"
	"fmt"
)

// Authentication outcomes surfaced by the session store.
var (
	ErrRejected          = errors.New("request rejected")
	ErrUnreachable       = errors.New("server unreachable")
	ErrMalformedResponse = errors.New("malformed server response")
	ErrSuperseded        = errors.New("superseded by a newer request")
	ErrNoCredential      = errors.New("no session credential")
)

// Identity stub errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
)

// Document errors.
var (
	ErrNoFile          = errors.New("no file selected")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNoFileSelected  = errors.New("no document selected")
	ErrEmptyMessage    = errors.New("empty message")
)

// ErrKeyNotFound is returned by key/value stores for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// StatusError carries the HTTP status of a rejected request. It matches
// ErrRejected under errors.Is.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request rejected: status %d", e.Code)
	}
	return fmt.Sprintf("request rejected: status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRejected
}
