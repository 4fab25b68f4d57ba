package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
)

const (
	loginPath  = "api/auth/login"
	signupPath = "api/auth/signup"
)

var _ ports.AuthClient = (*AuthClient)(nil)

// AuthClient calls the remote identity endpoints. Requests carry no
// Authorization header.
type AuthClient struct {
	base *url.URL
	http *http.Client
}

func NewAuthClient(baseURL string, hc *http.Client) (*AuthClient, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if hc == nil {
		hc = NewHTTPClient(0)
	}
	return &AuthClient{base: base, http: hc}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	User  *domain.Identity `json:"user"`
	Token string           `json:"token,omitempty"`
}

func (c *AuthClient) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	return c.post(ctx, loginPath, loginRequest{Email: email, Password: password})
}

func (c *AuthClient) Signup(ctx context.Context, email, password, name string) (*ports.AuthResult, error) {
	return c.post(ctx, signupPath, signupRequest{Email: email, Password: password, Name: name})
}

func (c *AuthClient) post(ctx context.Context, path string, body any) (*ports.AuthResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	u, err := resolve(c.base, path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var resp authResponse
	if err := send(c.http, req, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil || resp.User.Email == "" {
		return nil, fmt.Errorf("%w: response has no user", domain.ErrMalformedResponse)
	}
	return &ports.AuthResult{User: *resp.User, Token: resp.Token}, nil
}
