package uistream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.QueryMessage.Query)
		assert.Len(t, req.QueryMessage.ID, 24)
		assert.Equal(t, "user_1_abc", req.CookieID)

		SetHeaders(w.Header())
		enc := NewEncoder(w)
		enc.Encode(Chunk{Type: ChunkStart, MessageID: "a1"})
		enc.Encode(Chunk{Type: ChunkTextDelta, ID: "t1", Delta: "hi"})
		enc.Encode(Chunk{Type: ChunkFinish})
		enc.Done()
	}))
	defer server.Close()

	client := New(&Config{URL: server.URL, APIKey: "test-key"})
	stream, err := client.Stream(context.Background(), &Request{
		QueryMessage: QueryMessage{Query: "hello", ID: "0123456789abcdef01234567"},
		CookieID:     "user_1_abc",
	})
	require.NoError(t, err)

	var types []string
	for c := range stream {
		types = append(types, c.Type)
	}
	assert.Equal(t, []string{ChunkStart, ChunkTextDelta, ChunkFinish}, types)
}

func TestClientStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"bad query"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := New(&Config{URL: server.URL}).Stream(context.Background(), &Request{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "bad query")
}

func TestClientMalformedChunkBecomesErrorChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetHeaders(w.Header())
		w.Write([]byte("data: {\"type\":\"start\"}\n\ndata: garbage\n\n"))
	}))
	defer server.Close()

	stream, err := New(&Config{URL: server.URL}).Stream(context.Background(), &Request{})
	require.NoError(t, err)

	var got []Chunk
	for c := range stream {
		got = append(got, c)
	}
	require.Len(t, got, 2)
	assert.Equal(t, ChunkError, got[1].Type)
	assert.NotEmpty(t, got[1].ErrorText)
}

func TestClientStreamCanceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetHeaders(w.Header())
		enc := NewEncoder(w)
		enc.Encode(Chunk{Type: ChunkStart})
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := New(&Config{URL: server.URL}).Stream(ctx, &Request{})
	require.NoError(t, err)

	first := <-stream
	assert.Equal(t, ChunkStart, first.Type)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream not closed after cancel")
		}
	}
}
