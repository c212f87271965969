package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"chatrelay/internal/provider"
	"chatrelay/internal/relay"
	"chatrelay/internal/validation"
)

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
	Details []validation.FieldError
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string                  `json:"message"`
		Type    string                  `json:"type"`
		Code    string                  `json:"code,omitempty"`
		Details []validation.FieldError `json:"details,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, reqErr requestError) error {
	var payload errorBody
	payload.Error.Message = reqErr.Message
	payload.Error.Type = reqErr.Type
	payload.Error.Code = reqErr.Code
	payload.Error.Details = reqErr.Details
	return c.JSON(reqErr.Status, payload)
}

func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
		_ = writeError(c, requestError{Status: he.Code, Message: message, Type: "invalid_request_error"})
		return
	}

	slog.Error("unhandled request error", "error", err)
	_ = writeError(c, requestError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Type:    "server_error",
	})
}

// toHTTPError maps failures that happen before a stream starts.
func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
			Type:    "invalid_request_error",
			Code:    "validation_failed",
			Details: verr.Fields,
		}
	}
	if errors.Is(err, provider.ErrProviderNotFound) {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "Provider not found",
			Type:    "invalid_request_error",
			Code:    "provider_not_found",
		}
	}
	if errors.Is(err, relay.ErrAPIKeyRequired) {
		return requestError{
			Status:  http.StatusUnauthorized,
			Message: "API key required",
			Type:    "authentication_error",
			Code:    "api_key_required",
		}
	}

	return requestError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Type:    "server_error",
	}
}
