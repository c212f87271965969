// Package stream turns raw upstream response bytes into content deltas.
//
// Every upstream family frames its streaming body differently: SSE with
// "data:" lines, SSE with typed events, newline-delimited JSON, or a bare
// JSON body per read. A Decoder consumes successive network reads in arrival
// order and keeps whatever partial frame is left over for the next read.
// Decoders are single-use and not safe for concurrent use; each chat turn
// allocates its own.
package stream

import (
	"errors"

	"chatrelay/internal/models"
)

// ErrMalformedFrame is reported to the Observer for frames that are not valid JSON.
var ErrMalformedFrame = errors.New("malformed frame")

// Decoder incrementally extracts deltas from upstream bytes.
type Decoder interface {
	// Decode consumes one network read. done reports that the provider's
	// end-of-stream sentinel was seen; any bytes after it are ignored.
	Decode(chunk []byte) (deltas []models.Delta, done bool)
	// Flush processes whatever is still buffered once the body has ended.
	Flush() []models.Delta
}

// Observer is told about frames that were skipped instead of decoded.
type Observer interface {
	SkippedFrame(frame []byte, err error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(frame []byte, err error)

func (f ObserverFunc) SkippedFrame(frame []byte, err error) {
	f(frame, err)
}

type discardObserver struct{}

func (discardObserver) SkippedFrame([]byte, error) {}

func observerOrDiscard(obs Observer) Observer {
	if obs == nil {
		return discardObserver{}
	}
	return obs
}

func appendText(deltas []models.Delta, text string) []models.Delta {
	if text == "" {
		return deltas
	}
	return append(deltas, models.Delta{Text: text})
}
