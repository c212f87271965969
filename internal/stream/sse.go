package stream

import (
	"bytes"

	"github.com/tidwall/gjson"

	"chatrelay/internal/models"
)

const doneData = "[DONE]"

var dataPrefix = []byte("data:")

// SSEDecoder decodes Server-Sent Events whose data lines carry JSON frames.
type SSEDecoder struct {
	lines       lineBuffer
	observer    Observer
	contentPath string
	eventType   string
	stopType    string
	done        bool
}

// NewSSE returns a decoder for OpenAI-style streams: the delta text sits at
// contentPath and a "[DONE]" payload ends the stream.
func NewSSE(contentPath string, obs Observer) *SSEDecoder {
	return &SSEDecoder{
		observer:    observerOrDiscard(obs),
		contentPath: contentPath,
	}
}

// NewTypedSSE returns a decoder for streams whose frames carry a "type" field.
// Only frames of eventType contribute text (read from textPath); a frame of
// stopType ends the stream.
func NewTypedSSE(eventType, textPath, stopType string, obs Observer) *SSEDecoder {
	return &SSEDecoder{
		observer:    observerOrDiscard(obs),
		contentPath: textPath,
		eventType:   eventType,
		stopType:    stopType,
	}
}

func (d *SSEDecoder) Decode(chunk []byte) ([]models.Delta, bool) {
	if d.done {
		return nil, true
	}

	var deltas []models.Delta
	for _, line := range d.lines.feed(chunk) {
		deltas = d.line(deltas, line)
		if d.done {
			d.lines.pending = nil
			return deltas, true
		}
	}
	return deltas, false
}

func (d *SSEDecoder) Flush() []models.Delta {
	if d.done {
		return nil
	}
	return d.line(nil, d.lines.rest())
}

func (d *SSEDecoder) line(deltas []models.Delta, line []byte) []models.Delta {
	if !bytes.HasPrefix(line, dataPrefix) {
		return deltas
	}
	payload := bytes.TrimPrefix(line[len(dataPrefix):], []byte{' '})

	if d.eventType == "" && string(payload) == doneData {
		d.done = true
		return deltas
	}
	if !gjson.ValidBytes(payload) {
		d.observer.SkippedFrame(payload, ErrMalformedFrame)
		return deltas
	}

	if d.eventType != "" {
		typ := gjson.GetBytes(payload, "type").String()
		if d.stopType != "" && typ == d.stopType {
			d.done = true
			return deltas
		}
		if typ != d.eventType {
			return deltas
		}
	}
	return appendText(deltas, gjson.GetBytes(payload, d.contentPath).String())
}
