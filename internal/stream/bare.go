package stream

import (
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"chatrelay/internal/models"
)

// BareBodyDecoder treats every network read as one JSON document. The first
// non-empty value among its paths becomes the delta; a read that is not JSON
// is passed through as text so no upstream bytes are lost.
type BareBodyDecoder struct {
	observer Observer
	paths    []string
	pending  []byte
}

// NewBareBody returns a decoder trying each path in order.
func NewBareBody(obs Observer, paths ...string) *BareBodyDecoder {
	return &BareBodyDecoder{
		observer: observerOrDiscard(obs),
		paths:    paths,
	}
}

func (d *BareBodyDecoder) Decode(chunk []byte) ([]models.Delta, bool) {
	data := append(d.pending, chunk...)
	cut := completeUTF8(data)
	d.pending = append([]byte(nil), data[cut:]...)
	return d.document(data[:cut]), false
}

func (d *BareBodyDecoder) Flush() []models.Delta {
	rest := d.pending
	d.pending = nil
	return d.document(rest)
}

func (d *BareBodyDecoder) document(doc []byte) []models.Delta {
	if len(doc) == 0 {
		return nil
	}
	if !gjson.ValidBytes(doc) {
		d.observer.SkippedFrame(doc, ErrMalformedFrame)
		return appendText(nil, string(doc))
	}
	for _, path := range d.paths {
		if text := gjson.GetBytes(doc, path).String(); text != "" {
			return appendText(nil, text)
		}
	}
	return nil
}

// completeUTF8 returns the length of the prefix of b that does not end in a
// truncated multi-byte sequence.
func completeUTF8(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
