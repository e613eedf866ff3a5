package uistream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxEventSize = 1 << 20

// Decoder reads chunks from an SSE stream.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Decoder{scanner: sc}
}

// Next returns the next chunk. It returns io.EOF after the done marker or
// when the stream ends.
func (d *Decoder) Next() (Chunk, error) {
	for {
		payload, err := d.nextEvent()
		if err != nil {
			return Chunk{}, err
		}
		if payload == DoneMarker {
			d.done = true
			return Chunk{}, io.EOF
		}
		var c Chunk
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return Chunk{}, fmt.Errorf("decode chunk: %w", err)
		}
		if c.Type == "" {
			continue
		}
		return c, nil
	}
}

// nextEvent collects the data lines of one event. Comment lines and other
// fields are skipped.
func (d *Decoder) nextEvent() (string, error) {
	if d.done {
		return "", io.EOF
	}
	var data []string
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line == "" {
			if len(data) > 0 {
				return strings.Join(data, "\n"), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		data = append(data, strings.TrimPrefix(value, " "))
	}
	if err := d.scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	d.done = true
	if len(data) > 0 {
		return strings.Join(data, "\n"), nil
	}
	return "", io.EOF
}

// Encoder writes chunks as SSE events, flushing after each one when the
// underlying writer supports it.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one chunk.
func (e *Encoder) Encode(c Chunk) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode chunk: %w", err)
	}
	return e.writeEvent(string(data))
}

// Done writes the terminating marker.
func (e *Encoder) Done() error {
	return e.writeEvent(DoneMarker)
}

func (e *Encoder) writeEvent(payload string) error {
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if f, ok := e.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// SetHeaders sets the response headers of an SSE stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("x-vercel-ai-ui-message-stream", "v1")
}
