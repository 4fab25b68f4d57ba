package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
	"github.com/documentai/docai/internal/core/service"
)

// SessionHandler exposes the session store to local consumers.
type SessionHandler struct {
	session ports.Session
}

func NewSessionHandler(session ports.Session) *SessionHandler {
	return &SessionHandler{session: session}
}

// --- Request / Response types ---

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name,omitempty" validate:"max=100"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	User                *domain.Identity `json:"user"`
	Authenticated       bool             `json:"authenticated"`
	Loading             bool             `json:"loading"`
	CredentialExpiresAt *time.Time       `json:"credential_expires_at,omitempty"`
}

type userResponse struct {
	User domain.Identity `json:"user"`
}

// Get returns the current session state.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session [get]
func (h *SessionHandler) Get(c echo.Context) error {
	state := h.session.Snapshot()
	resp := sessionResponse{
		User:          state.User,
		Authenticated: state.Authenticated(),
		Loading:       state.Loading,
	}
	if token, ok := h.session.Credential(); ok {
		if exp, ok := service.CredentialExpiry(token); ok {
			resp.CredentialExpiresAt = &exp
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Login signs in through the session store.
//
// @Summary      Login
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Login credentials"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.session.Login(c.Request().Context(), req.Email, req.Password); err != nil {
		return err
	}
	return h.currentUser(c)
}

// Signup registers and signs in through the session store.
//
// @Summary      Signup
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Registration details"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /session/signup [post]
func (h *SessionHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.session.Signup(c.Request().Context(), req.Email, req.Password, req.Name); err != nil {
		return err
	}
	return h.currentUser(c)
}

func (h *SessionHandler) currentUser(c echo.Context) error {
	user, ok := h.session.CurrentUser()
	if !ok {
		// A logout landed between the commit and this read.
		return domain.ErrSuperseded
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

// Logout clears the session.
//
// @Summary      Logout
// @Tags         session
// @Success      204
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	h.session.Logout(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// SetCredential stores the bearer token used for document requests.
//
// @Summary      Set credential
// @Tags         session
// @Accept       json
// @Param        body  body  tokenRequest  true  "Bearer token; empty clears it"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Router       /session/credential [put]
func (h *SessionHandler) SetCredential(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.session.SetCredential(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
