package stream

import (
	"bytes"

	"github.com/tidwall/gjson"

	"chatrelay/internal/models"
)

// NDJSONDecoder decodes newline-delimited JSON documents without any prefix.
// A line split across two reads is held back and completed by the next read.
type NDJSONDecoder struct {
	lines       lineBuffer
	observer    Observer
	contentPath string
	donePath    string
	done        bool
}

// NewNDJSON returns a decoder reading delta text at contentPath. When
// donePath is set, a document whose donePath is true ends the stream.
func NewNDJSON(contentPath, donePath string, obs Observer) *NDJSONDecoder {
	return &NDJSONDecoder{
		observer:    observerOrDiscard(obs),
		contentPath: contentPath,
		donePath:    donePath,
	}
}

func (d *NDJSONDecoder) Decode(chunk []byte) ([]models.Delta, bool) {
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

func (d *NDJSONDecoder) Flush() []models.Delta {
	if d.done {
		return nil
	}
	return d.line(nil, d.lines.rest())
}

func (d *NDJSONDecoder) line(deltas []models.Delta, line []byte) []models.Delta {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return deltas
	}
	if !gjson.ValidBytes(line) {
		d.observer.SkippedFrame(line, ErrMalformedFrame)
		return deltas
	}

	deltas = appendText(deltas, gjson.GetBytes(line, d.contentPath).String())
	if d.donePath != "" && gjson.GetBytes(line, d.donePath).Bool() {
		d.done = true
	}
	return deltas
}
