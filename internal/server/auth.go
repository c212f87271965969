package server

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const headerAPIKey = "x-api-key"

var errInvalidAPIKey = errors.New("invalid API key")

// keyAuth guards the chat endpoint. A missing key is 401, a wrong one 403.
func keyAuth(expected string) echo.MiddlewareFunc {
	want := []byte(expected)

	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() != "/api/chat"
		},
		KeyLookup: "header:" + headerAPIKey,
		Validator: func(key string, c echo.Context) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), want) != 1 {
				return false, errInvalidAPIKey
			}
			return true, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			if errors.Is(err, errInvalidAPIKey) {
				return requestError{
					Status:  http.StatusForbidden,
					Message: "Invalid API key",
					Type:    "authentication_error",
					Code:    "invalid_api_key",
				}
			}
			return requestError{
				Status:  http.StatusUnauthorized,
				Message: "API key required",
				Type:    "authentication_error",
				Code:    "missing_api_key",
			}
		},
	})
}
