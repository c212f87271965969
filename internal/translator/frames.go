package translator

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DoneFrame terminates every outgoing stream.
var DoneFrame = []byte("data: [DONE]\n\n")

type deltaFrame struct {
	Choices []deltaChoice `json:"choices"`
}

type deltaChoice struct {
	Delta deltaContent `json:"delta"`
}

type deltaContent struct {
	Content string `json:"content"`
}

// EncodeDelta renders text as one outgoing SSE frame in the OpenAI chunk shape.
func EncodeDelta(text string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("data: ")

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(deltaFrame{Choices: []deltaChoice{{Delta: deltaContent{Content: text}}}}); err != nil {
		return nil, fmt.Errorf("marshal delta frame: %w", err)
	}

	// Encode terminated the JSON with one newline; SSE needs a blank line.
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
