package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talkflow/talkflow/internal/audio"
)

// Client talks to a whisper-style HTTP transcription server. The server does
// not stream hypotheses, so each request yields a single final Partial.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	semaphore  chan struct{}

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64

	mu sync.RWMutex
}

// ClientConfig contains recognition client configuration
type ClientConfig struct {
	Endpoint      string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// serverResponse is the transcription server's JSON reply.
type serverResponse struct {
	Text       string  `json:"text"`
	Language   string  `json:"language,omitempty"`
	Confidence float32 `json:"confidence,omitempty"`
}

// ClientStats represents recognition client statistics
type ClientStats struct {
	TotalRequests   uint64 `json:"total_requests"`
	SuccessRequests uint64 `json:"success_requests"`
	FailedRequests  uint64 `json:"failed_requests"`
	TotalRetries    uint64 `json:"total_retries"`
}

// NewClient creates a new recognition HTTP client
func NewClient(config ClientConfig) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Recognize sends the segment for transcription and delivers the result as a
// single final Partial on the returned channel.
func (c *Client) Recognize(ctx context.Context, req Request) (<-chan Partial, error) {
	if len(req.Samples) == 0 {
		return nil, fmt.Errorf("cannot recognize empty segment %s", req.SegmentID)
	}

	out := make(chan Partial, 1)

	go func() {
		defer close(out)

		text, err := c.transcribe(ctx, req)
		p := Partial{
			SegmentID: req.SegmentID,
			Final:     true,
			EmittedAt: time.Now(),
		}
		if err != nil {
			p.Err = fmt.Errorf("recognition failed for segment %s: %w", req.SegmentID, err)
		} else {
			p.Text = text
		}

		select {
		case out <- p:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

// transcribe performs the request with retry and concurrency limiting.
func (c *Client) transcribe(ctx context.Context, req Request) (string, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	c.incrementTotalRequests()

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.doRequest(ctx, req)
		if err == nil {
			c.incrementSuccessRequests()
			return text, nil
		}

		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return "", fmt.Errorf("recognition failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// doRequest performs a single multipart upload to the transcription server.
func (c *Client) doRequest(ctx context.Context, req Request) (string, error) {
	wav, err := audio.EncodeWAV(req.Samples, req.SampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode segment audio: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", req.SegmentID+".wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wav); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"segment_id":  req.SegmentID,
		"request_id":  uuid.NewString(),
		"sample_rate": fmt.Sprintf("%d", req.SampleRate),
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	model := req.Model
	if model == "" {
		model = c.config.Model
	}
	if model != "" {
		fields["model"] = model
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed serverResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return strings.TrimSpace(parsed.Text), nil
}

// isRetryable reports whether a request error is worth retrying: server-side
// failures, rate limiting, and transport problems.
func isRetryable(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "HTTP error 5"):
		return true
	case strings.Contains(msg, "HTTP error 429"):
		return true
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "refused"):
		return true
	}

	return false
}

func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		TotalRetries:    c.totalRetries,
	}
}
