package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"

	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
)

const (
	uploadPath = "api/upload"
	filesPath  = "api/files"
	chatPath   = "api/chat"
)

var _ ports.DocumentClient = (*DocumentClient)(nil)

// CredentialSource yields the bearer token for outbound requests.
type CredentialSource interface {
	Credential() (string, bool)
}

// DocumentClient calls the authenticated document endpoints.
type DocumentClient struct {
	base    *url.URL
	http    *http.Client
	creds   CredentialSource
	limiter *rate.Limiter
}

// NewDocumentClient returns a client that sends at most rps requests per
// second (unlimited when rps <= 0).
func NewDocumentClient(baseURL string, hc *http.Client, creds CredentialSource, rps float64) (*DocumentClient, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if hc == nil {
		hc = NewHTTPClient(0)
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &DocumentClient{base: base, http: hc, creds: creds, limiter: rate.NewLimiter(limit, burst)}, nil
}

func (c *DocumentClient) newRequest(ctx context.Context, method, ref string, body io.Reader) (*http.Request, error) {
	token, ok := c.creds.Credential()
	if !ok {
		return nil, domain.ErrNoCredential
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnreachable, err)
	}
	u, err := resolve(c.base, ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

type uploadResponse struct {
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
}

// Upload posts the document as multipart form data.
func (c *DocumentClient) Upload(ctx context.Context, in ports.UploadInput) (*domain.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, in.Name))
	h.Set("Content-Type", mimetype.Detect(in.Content).String())
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(in.Content); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := mw.WriteField("beautify", strconv.FormatBool(in.Beautify)); err != nil {
		return nil, fmt.Errorf("write beautify field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, uploadPath, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := send(c.http, req, &resp); err != nil {
		return nil, err
	}
	return &domain.UploadResult{DownloadURL: resp.DownloadURL, Filename: resp.Filename}, nil
}

type filesResponse struct {
	Files []domain.ProcessedFile `json:"files"`
}

func (c *DocumentClient) ListFiles(ctx context.Context) ([]domain.ProcessedFile, error) {
	req, err := c.newRequest(ctx, http.MethodGet, filesPath, nil)
	if err != nil {
		return nil, err
	}
	var resp filesResponse
	if err := send(c.http, req, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func (c *DocumentClient) DeleteFile(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, filesPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return send(c.http, req, nil)
}

type chatRequest struct {
	Message string `json:"message"`
	FileID  string `json:"file_id"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (c *DocumentClient) Chat(ctx context.Context, message, fileID string) (string, error) {
	payload, err := json.Marshal(chatRequest{Message: message, FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, chatPath, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp chatResponse
	if err := send(c.http, req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Download copies the body at ref into w. The bearer token is only sent to
// the API host; other hosts (e.g. presigned storage URLs) get a bare GET.
func (c *DocumentClient) Download(ctx context.Context, ref string, w io.Writer) (int64, error) {
	u, err := resolve(c.base, ref)
	if err != nil {
		return 0, err
	}

	var req *http.Request
	if u.Host == c.base.Host {
		req, err = c.newRequest(ctx, http.MethodGet, u.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}
	if err != nil {
		return 0, err
	}
	req.Header.Del("Accept")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, statusError(resp)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download: %w", err)
	}
	return n, nil
}
