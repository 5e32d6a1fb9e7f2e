package synthesis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestClientSynthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Unexpected authorization header %q", got)
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Text != "hello world" || req.Voice != "voice-a" {
			t.Errorf("Unexpected request payload: %+v", req)
		}
		if req.RequestID == "" {
			t.Error("Request must carry a request id")
		}

		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("fake-wav-bytes"))
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	data, err := client.Synthesize(context.Background(), "hello world", "voice-a")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(data) != "fake-wav-bytes" {
		t.Errorf("Unexpected audio payload %q", data)
	}

	stats := client.GetStats()
	if stats.SuccessRequests != 1 || stats.FailedRequests != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "backend overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("audio"))
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 2})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	data, err := client.Synthesize(context.Background(), "text", "voice")
	if err != nil {
		t.Fatalf("Synthesize should succeed after retry: %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("Unexpected payload %q", data)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls.Load())
	}
	if client.GetStats().TotalRetries != 1 {
		t.Errorf("Expected 1 retry recorded, got %d", client.GetStats().TotalRetries)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "malformed text", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.Synthesize(context.Background(), "text", "voice")
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "HTTP error 400") {
		t.Errorf("Error should carry the status: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Client errors must not be retried, got %d attempts", calls.Load())
	}
}

func TestClientEmptyAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 0})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Synthesize(context.Background(), "text", "voice"); err == nil {
		t.Error("Empty audio payload should be an error")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}

	client, err := NewClient(Config{Endpoint: "http://localhost:9999"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.config.MaxConcurrent <= 0 {
		t.Error("MaxConcurrent should default to a positive value")
	}
	if client.config.Timeout <= 0 {
		t.Error("Timeout should default to a positive value")
	}
}
