// Package gemini implements domain.Reasoner on the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.0-flash"

	// maxErrorBody bounds how much of an upstream error body is kept for logs.
	maxErrorBody = 2048
)

// Client calls the Gemini API. A request that fails on the transport or with a
// 5xx is retried once, immediately; 4xx answers are final.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	logger     *slog.Logger
}

// NewClient creates a client whose calls are bounded by timeout.
func NewClient(baseURL, model string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		logger:     logger,
	}
}

// Infer generates an explanation for req. Failures are *domain.InferenceError.
func (c *Client) Infer(ctx context.Context, req domain.ReasoningRequest, credential string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: BuildPrompt(req)}}}},
	})
	if err != nil {
		return "", &domain.InferenceError{Failure: domain.InferenceTransport, Err: fmt.Errorf("encode request: %w", err)}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1), ctx)
	notify := func(err error, _ time.Duration) {
		c.logger.Warn("reasoning API call failed, retrying", "model", c.model, "error", err)
	}
	text, err := backoff.RetryNotifyWithData(func() (string, error) {
		return c.generate(ctx, body, credential)
	}, policy, notify)
	if err != nil {
		var infErr *domain.InferenceError
		if !errors.As(err, &infErr) {
			// The policy surfaces bare context errors when ctx ends between attempts.
			return "", transportFailure(err)
		}
		return "", err
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, body []byte, credential string) (string, error) {
	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(&domain.InferenceError{Failure: domain.InferenceTransport, Err: fmt.Errorf("create request: %w", err)})
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		infErr := transportFailure(err)
		if infErr.Failure == domain.InferenceTimeout || errors.Is(err, context.Canceled) {
			return "", backoff.Permanent(infErr)
		}
		return "", infErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("gemini API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", &domain.InferenceError{Failure: domain.InferenceTransport, StatusCode: resp.StatusCode, Err: statusErr}
		}
		return "", backoff.Permanent(&domain.InferenceError{Failure: domain.InferenceRejected, StatusCode: resp.StatusCode, Err: statusErr})
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", backoff.Permanent(&domain.InferenceError{Failure: domain.InferenceTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)})
	}

	text := strings.TrimSpace(gr.text())
	if text == "" {
		err := domain.ErrEmptyResponse
		if reason := gr.blockReason(); reason != "" {
			err = fmt.Errorf("%w: blocked: %s", domain.ErrEmptyResponse, reason)
		}
		return "", backoff.Permanent(&domain.InferenceError{Failure: domain.InferenceEmpty, StatusCode: resp.StatusCode, Err: err})
	}
	return text, nil
}

// transportFailure classifies a failed round trip. Timeouts and cancellations
// are final since the budget is spent; other network errors may be retried.
func transportFailure(err error) *domain.InferenceError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.InferenceError{Failure: domain.InferenceTimeout, Err: err}
	}
	return &domain.InferenceError{Failure: domain.InferenceTransport, Err: err}
}

// Gemini API request and response types.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (r generateResponse) blockReason() string {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return r.PromptFeedback.BlockReason
	}
	if len(r.Candidates) > 0 && r.Candidates[0].FinishReason == "SAFETY" {
		return "SAFETY"
	}
	return ""
}

var _ domain.Reasoner = (*Client)(nil)
