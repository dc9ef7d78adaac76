package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"walchat/walchat/utils/logging"
)

func TestMain(m *testing.M) {
	logging.InitTestLogger()
	os.Exit(m.Run())
}

func testClient(url string) *Client {
	return &Client{
		baseURL:     url,
		model:       "test-model",
		temperature: 0.7,
		maxDuration: 2 * time.Second,
	}
}

func writeChunk(w http.ResponseWriter, content string, done bool) {
	chunk := ChatResponse{Message: Message{Role: "assistant", Content: content}, Done: done}
	// The client may hang up mid-stream in cancellation tests.
	_ = json.NewEncoder(w).Encode(chunk)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestRunStreamDeliversFragmentsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Errorf("expected stream=true request")
		}
		if req.Options == nil || req.Options.Temperature != 0.7 {
			t.Errorf("expected temperature 0.7, got %+v", req.Options)
		}
		for _, part := range []string{"Hel", "lo ", "world"} {
			writeChunk(w, part, false)
		}
		writeChunk(w, "", true)
	}))
	defer srv.Close()

	stream, err := testClient(srv.URL).RunStream(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("RunStream: %v", err)
	}

	var got string
	for fragment := range stream.Fragments() {
		got += fragment
	}
	if got != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", got)
	}
	if err := stream.Err(); err != nil {
		t.Errorf("expected clean completion, got %v", err)
	}
}

func TestRunStreamBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).RunStream(context.Background(), nil)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestRunStreamUnreachableBackend(t *testing.T) {
	client := testClient("http://127.0.0.1:1")

	_, err := client.RunStream(context.Background(), nil)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestRunStreamTimeoutMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChunk(w, "partial", false)
		time.Sleep(500 * time.Millisecond)
		writeChunk(w, "late", false)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	client.maxDuration = 100 * time.Millisecond

	stream, err := client.RunStream(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunStream: %v", err)
	}

	var fragments []string
	for fragment := range stream.Fragments() {
		fragments = append(fragments, fragment)
	}
	if len(fragments) != 1 || fragments[0] != "partial" {
		t.Errorf("expected only the pre-timeout fragment, got %v", fragments)
	}
	if err := stream.Err(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestRunStreamClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChunk(w, "first", false)
		time.Sleep(500 * time.Millisecond)
		writeChunk(w, "second", false)
	}))
	defer srv.Close()

	stream, err := testClient(srv.URL).RunStream(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunStream: %v", err)
	}

	first := <-stream.Fragments()
	if first != "first" {
		t.Fatalf("expected %q, got %q", "first", first)
	}
	stream.Close()

	for range stream.Fragments() {
	}
	if err := stream.Err(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected Canceled after Close, got %v", err)
	}
}

func TestRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Errorf("expected stream=false request")
		}
		json.NewEncoder(w).Encode(ChatResponse{Message: Message{Role: "assistant", Content: "full reply"}, Done: true})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).Run(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "full reply" {
		t.Errorf("expected %q, got %q", "full reply", got)
	}
}
