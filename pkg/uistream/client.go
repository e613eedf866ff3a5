package uistream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Config holds the streaming endpoint settings.
type Config struct {
	URL    string
	APIKey string
}

// Client posts chat requests to a streaming endpoint and decodes the
// response into chunks.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// New creates a Client. The HTTP client has no overall timeout; streams
// are bounded by the request context.
func New(config *Config) *Client {
	return &Client{
		config:     config,
		httpClient: &http.Client{},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// StatusError is returned when the endpoint rejects the request.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream endpoint error (status %d): %s", e.StatusCode, e.Body)
}

// Open posts body to the endpoint and returns the raw response. The caller
// closes the response body.
func (c *Client) Open(ctx context.Context, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}

// Stream sends req and returns a channel of decoded chunks. The channel is
// closed when the stream ends or ctx is canceled. Failures after the
// response has started arrive as an error chunk.
func (c *Client) Stream(ctx context.Context, req *Request) (<-chan Chunk, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	resp, err := c.Open(ctx, bytes.NewReader(body), nil)
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		dec := NewDecoder(resp.Body)
		for {
			chunk, err := dec.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				chunk = Chunk{Type: ChunkError, ErrorText: err.Error()}
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
			if chunk.Type == ChunkError && err != nil {
				return
			}
		}
	}()
	return ch, nil
}
