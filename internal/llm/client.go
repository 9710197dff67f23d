// Package llm implements the single chat-completion abstraction every
// LLM-backed service goes through, plus the three pure services built on
// top of it: paper relevance scoring, literature knowledge extraction, and
// narrative writing. The LLM is never trusted to decide a tier; it only
// produces prose and structured summaries the tier engine's output gates.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tierdx/tierdx/internal/domain"
)

// HTTPChatClient implements domain.ChatClient against an OpenAI-compatible
// chat completions endpoint.
type HTTPChatClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPChatClient builds a ChatClient bound to baseURL (an
// OpenAI-compatible "/chat/completions" host) and apiKey.
func NewHTTPChatClient(baseURL, apiKey string, timeout time.Duration) *HTTPChatClient {
	return &HTTPChatClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm-chat",
			MaxRequests: 2,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *responseFmt  `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Chat sends a single chat-completion request and returns the first
// choice's message content.
func (c *HTTPChatClient) Chat(ctx context.Context, model string, messages []domain.ChatMessage, maxTokens int, temperature float64, jsonMode bool) (string, error) {
	req := chatRequest{Model: model, MaxTokens: maxTokens, Temperature: temperature}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if jsonMode {
		req.ResponseFormat = &responseFmt{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.send(ctx, body)
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return out.(string), nil
}

func (c *HTTPChatClient) send(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat endpoint status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response carried no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
