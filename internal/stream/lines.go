package stream

import "bytes"

// lineBuffer splits a byte stream on '\n', holding back the trailing partial
// line until a later read completes it.
type lineBuffer struct {
	pending []byte
}

// feed appends chunk and returns every complete line with the terminator and
// any trailing '\r' removed. Returned slices are only valid until the next call.
func (b *lineBuffer) feed(chunk []byte) [][]byte {
	data := append(b.pending, chunk...)

	var lines [][]byte
	start := 0
	for {
		idx := bytes.IndexByte(data[start:], '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, bytes.TrimSuffix(data[start:start+idx], []byte{'\r'}))
		start += idx + 1
	}

	b.pending = append([]byte(nil), data[start:]...)
	return lines
}

// rest drains the held-back partial line.
func (b *lineBuffer) rest() []byte {
	out := bytes.TrimSuffix(b.pending, []byte{'\r'})
	b.pending = nil
	return out
}
