package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ctxSubject extracts the token subject injected by the Auth middleware.
// An empty subject means the middleware did not run or the token carried none.
func ctxSubject(c echo.Context) (string, error) {
	subject, _ := c.Get("sub").(string)
	if subject == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return subject, nil
}
