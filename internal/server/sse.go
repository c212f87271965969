package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"chatrelay/internal/translator"
)

// sseSink writes normalized deltas to the client as server-sent events.
type sseSink struct {
	res     *echo.Response
	flusher http.Flusher
}

func newSSESink(c echo.Context) (*sseSink, error) {
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		slog.Error("http writer does not support flushing")
		return nil, requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Type:    "server_error",
		}
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseSink{res: c.Response(), flusher: flusher}, nil
}

func (s *sseSink) WriteDelta(text string) error {
	frame, err := translator.EncodeDelta(text)
	if err != nil {
		return err
	}
	return s.write(frame)
}

func (s *sseSink) WriteDone() error {
	return s.write(translator.DoneFrame)
}

func (s *sseSink) write(frame []byte) error {
	if _, err := s.res.Write(frame); err != nil {
		return fmt.Errorf("write SSE frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}
