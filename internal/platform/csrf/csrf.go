// Package csrf implements the double-submit CSRF handshake the collaboration
// API requires before any state-changing call: clients fetch a token from
// GET /csrf, receive it both in the JSON body and in a cookie, and echo it
// back in the X-CSRFToken header on every write.
package csrf

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	// CookieName is the cookie carrying the CSRF token.
	CookieName = "csrftoken"
	// HeaderName is the request header clients echo the token back in.
	HeaderName = "X-CSRFToken"

	tokenBytes = 32
)

// NewToken returns a fresh random token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// TokenHandler issues a CSRF token. The token is returned in the response body
// and set as a cookie; verification compares the two on writes.
func TokenHandler(c echo.Context) error {
	token, err := NewToken()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate token")
	}

	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false, // the client must read it to echo it in the header
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, map[string]string{"csrfToken": token})
}

// Middleware verifies the double-submit token on state-changing methods.
// Safe methods pass through untouched.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			cookie, err := c.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				return echo.NewHTTPError(http.StatusForbidden, "CSRF cookie not set")
			}

			header := c.Request().Header.Get(HeaderName)
			if header == "" || header != cookie.Value {
				return echo.NewHTTPError(http.StatusForbidden, "CSRF token missing or incorrect")
			}

			return next(c)
		}
	}
}
