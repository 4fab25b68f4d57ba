// Package client implements the outbound HTTP contracts of the remote
// document API: authentication, upload, chat and file history.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/documentai/docai/internal/core/domain"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
	headerRequest  = "X-Request-ID"
)

// NewHTTPClient returns an http.Client with a bounded timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// send executes req and decodes a 2xx JSON body into out (when non-nil).
// Transport failures wrap domain.ErrUnreachable, non-2xx responses become
// *domain.StatusError and undecodable bodies wrap domain.ErrMalformedResponse.
func send(hc *http.Client, req *http.Request, out any) error {
	if req.Header.Get(headerRequest) == "" {
		req.Header.Set(headerRequest, uuid.NewString())
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))

	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error != "":
			msg = body.Error
		case body.Message != "":
			msg = body.Message
		}
	}
	return &domain.StatusError{Code: resp.StatusCode, Message: msg}
}

// resolve joins a path onto base. Absolute URLs are returned unchanged.
func resolve(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", ref, err)
	}
	return base.ResolveReference(u), nil
}

func parseBase(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("empty base url")
	}
	u, err := url.Parse(strings.TrimRight(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	return u, nil
}
