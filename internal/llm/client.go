// Package llm wraps the external text-completion service behind a small
// interface so the proposal engine can be exercised with a fake in tests.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message roles for the chat-shaped completion contract.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ErrMissingCredentials is returned at call time when no API key is
// configured. Construction never fails on absent credentials.
var ErrMissingCredentials = errors.New("missing completion service credentials")

type (
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	Request struct {
		Messages    []Message
		MaxTokens   int
		Temperature float64
	}

	Response struct {
		Content          string
		PromptTokens     int
		CompletionTokens int
	}

	// Completer is the port consumed by the proposal engine.
	Completer interface {
		Complete(ctx context.Context, req Request) (Response, error)
	}
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient builds a client for the given endpoint. An empty apiKey is
// accepted here and rejected on the first Complete call.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

type wireRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type wireResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends one blocking completion request. No streaming, no retries.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return Response{}, ErrMissingCredentials
	}

	body, err := json.Marshal(wireRequest{
		Model:       c.model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("completion request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read completion response: %w", err)
	}
	if res.StatusCode >= 300 {
		return Response{}, &StatusError{Status: res.StatusCode, Body: string(raw)}
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Response{}, fmt.Errorf("decode completion response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return Response{}, errors.New("completion response has no choices")
	}

	return Response{
		Content:          wire.Choices[0].Message.Content,
		PromptTokens:     wire.Usage.PromptTokens,
		CompletionTokens: wire.Usage.CompletionTokens,
	}, nil
}

// StatusError is a non-2xx reply from the completion endpoint.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion service returned status %d", e.Status)
}
