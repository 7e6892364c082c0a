package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testRequest() Request {
	return Request{
		SegmentID:  "seg-1",
		Samples:    make([]float32, 1600),
		SampleRate: 16000,
		Language:   "en",
	}
}

func TestClientRecognize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart body: %v", err)
		}
		if got := r.FormValue("segment_id"); got != "seg-1" {
			t.Errorf("segment_id = %q, want seg-1", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q, want en", got)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing audio file: %v", err)
		} else {
			file.Close()
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "  hello world  "}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{Endpoint: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	partials, err := client.Recognize(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	p := <-partials
	if p.Err != nil {
		t.Fatalf("partial carries error: %v", p.Err)
	}
	if !p.Final {
		t.Error("HTTP recognition should produce a final partial")
	}
	if p.Text != "hello world" {
		t.Errorf("text = %q, want trimmed \"hello world\"", p.Text)
	}

	if _, open := <-partials; open {
		t.Error("channel not closed after the final partial")
	}

	stats := client.GetStats()
	if stats.SuccessRequests != 1 {
		t.Errorf("SuccessRequests = %d, want 1", stats.SuccessRequests)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"text": "recovered"}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{Endpoint: server.URL, Timeout: 5 * time.Second, MaxRetries: 2})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	partials, err := client.Recognize(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	p := <-partials
	if p.Err != nil {
		t.Fatalf("partial carries error: %v", p.Err)
	}
	if p.Text != "recovered" {
		t.Errorf("text = %q, want \"recovered\"", p.Text)
	}

	stats := client.GetStats()
	if stats.TotalRetries != 1 {
		t.Errorf("TotalRetries = %d, want 1", stats.TotalRetries)
	}
}

func TestClientReportsTerminalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{Endpoint: server.URL, Timeout: 5 * time.Second, MaxRetries: 3})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	partials, err := client.Recognize(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	p := <-partials
	if p.Err == nil {
		t.Fatal("expected terminal error partial")
	}
	if !p.Final {
		t.Error("error partial should be final")
	}

	// 400 is not retryable; one request only.
	stats := client.GetStats()
	if stats.TotalRetries != 0 {
		t.Errorf("TotalRetries = %d, want 0", stats.TotalRetries)
	}
	if stats.FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1", stats.FailedRequests)
	}
}

func TestClientRejectsEmptySegment(t *testing.T) {
	client, err := NewClient(ClientConfig{Endpoint: "http://localhost:1"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Recognize(context.Background(), Request{SegmentID: "empty"}); err == nil {
		t.Error("expected error for empty segment")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestMockRecognizerProgressivePartials(t *testing.T) {
	rec := &MockRecognizer{Transcript: "one two three"}

	partials, err := rec.Recognize(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	var texts []string
	var finals int
	for p := range partials {
		texts = append(texts, p.Text)
		if p.Final {
			finals++
		}
	}

	want := []string{"one", "one two", "one two three"}
	if len(texts) != len(want) {
		t.Fatalf("got %d partials %v, want %d", len(texts), texts, len(want))
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("partial %d = %q, want %q", i, texts[i], want[i])
		}
	}
	if finals != 1 {
		t.Errorf("got %d final partials, want 1", finals)
	}
}
