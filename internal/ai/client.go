package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"concierge-chat/config"
	"concierge-chat/pkg/logger"
)

// FallbackReply is returned whenever the completion backend fails. It flows
// through the normal message path, so an outage produces a visible apology
// instead of silence.
const FallbackReply = "Xin lỗi, tôi đang gặp chút sự cố kỹ thuật. Tôi sẽ quay lại hỗ trợ bạn ngay!"

const requestTimeout = 30 * time.Second

// Turn is one entry of the bounded history sent to the completion backend.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Messages []Turn `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Responder produces a reply from a bounded history plus the triggering
// content. Implementations never return an error; failures degrade to a fixed
// fallback string.
type Responder interface {
	Generate(ctx context.Context, history []Turn, content string) string
}

// Client calls an OpenAI-style chat completion endpoint over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(cfg *config.Config, l *logger.Logger) *Client {
	return &Client{
		endpoint:   fmt.Sprintf("http://%s:%s/v1/chat/completions", cfg.AIServiceHost, cfg.AIServicePort),
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     l,
	}
}

// Generate appends content as the final user turn and requests a completion.
// Timeouts, transport errors, non-2xx statuses and malformed bodies all return
// FallbackReply; the caller never observes a generation failure as an error.
func (c *Client) Generate(ctx context.Context, history []Turn, content string) string {
	reply, err := c.complete(ctx, append(append([]Turn{}, history...), Turn{Role: "user", Content: content}))
	if err != nil {
		if c.logger != nil {
			c.logger.Errorf("AI service error: %s", err)
		}
		return FallbackReply
	}
	return reply
}

func (c *Client) complete(ctx context.Context, messages []Turn) (string, error) {
	body, err := json.Marshal(completionRequest{Messages: messages})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("completion backend returned status %d", resp.StatusCode)
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completion backend returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
