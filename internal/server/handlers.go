package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"chatrelay/internal/models"
	"chatrelay/internal/relay"
	"chatrelay/internal/translator"
	"chatrelay/internal/validation"
)

type healthBody struct {
	Status string `json:"status"`
	relay.Stats
}

type providersBody struct {
	Success bool                        `json:"success"`
	Data    []models.ProviderDescriptor `json:"data"`
	Count   int                         `json:"count"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthBody{Status: "ok", Stats: s.relay.Stats()})
}

func (s *Server) handleProviders(c echo.Context) error {
	list := s.relay.Providers()
	return c.JSON(http.StatusOK, providersBody{Success: true, Data: list, Count: len(list)})
}

func (s *Server) handleChat(c echo.Context) error {
	var req translator.ChatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	turn := req.ToTurn(c.Response().Header().Get(echo.HeaderXRequestID))
	if err := validation.Turn(turn); err != nil {
		return toHTTPError(err)
	}

	route, err := s.relay.Resolve(turn)
	if err != nil {
		return toHTTPError(err)
	}

	sink, err := newSSESink(c)
	if err != nil {
		return err
	}

	// Once the event stream has started, failures are reported in-band and
	// the status line cannot change anymore.
	if err := s.relay.Stream(c.Request().Context(), route, sink); err != nil && !errors.Is(err, context.Canceled) {
		slog.Info("chat stream ended early", "turn", turn.ID, "error", err)
	}
	return nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}
