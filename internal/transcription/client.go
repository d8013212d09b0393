package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/skorokithakis/middle/internal/metrics"
)

// ErrAuthentication indicates the API rejected the credential. Callers
// should stop transcribing for the rest of the session instead of retrying.
var ErrAuthentication = errors.New("transcription authentication failed")

// Config contains transcription client configuration.
type Config struct {
	APIURL        string
	APIKey        string
	Model         string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Client sends recorded audio to the transcription API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a transcription client.
func NewClient(config Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

// Transcribe uploads one MP3 artifact and returns the transcript text.
// Transient failures (network errors, 429, 5xx) are retried with
// exponential backoff; 401 and 403 return ErrAuthentication immediately.
func (c *Client) Transcribe(ctx context.Context, path string, audio []byte) (string, error) {
	c.metrics.RecordTranscriptionRequest()
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 1 {
			delay := c.config.RetryDelay * time.Duration(1<<(attempt-2))
			c.logger.Debug("Retrying transcription request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				c.metrics.RecordTranscriptionFailure(time.Since(start).Seconds())
				return "", ctx.Err()
			}
		}

		text, retryable, err := c.send(ctx, path, audio)
		if err == nil {
			c.metrics.RecordTranscriptionSuccess(time.Since(start).Seconds())
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}

		c.logger.Warn("Transcription request failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}

	c.metrics.RecordTranscriptionFailure(time.Since(start).Seconds())
	return "", fmt.Errorf("transcription failed after %d attempts: %w", c.config.RetryAttempts, lastErr)
}

// send performs one request. The second return value reports whether the
// failure is worth retrying.
func (c *Client) send(ctx context.Context, path string, audio []byte) (string, bool, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", false, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", false, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.WriteField("model", c.config.Model); err != nil {
		return "", false, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "text"); err != nil {
		return "", false, fmt.Errorf("failed to write response format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", false, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL, &body)
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return strings.TrimSpace(string(respBody)), false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", false, fmt.Errorf("%w: status %d", ErrAuthentication, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", true, fmt.Errorf("server returned status %d: %s", resp.StatusCode, respBody)
	default:
		return "", false, fmt.Errorf("server returned status %d: %s", resp.StatusCode, respBody)
	}
}
