package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/siddharthiitian/Flight-Amedus/config"
	"github.com/siddharthiitian/Flight-Amedus/tracing"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer sends a conversation to a provider and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, p config.LLMProvider, messages []ChatMessage) (string, error)
}

// ChatClient talks to any OpenAI-compatible /chat/completions endpoint; Grok,
// Hugging Face and Gemini differ only in base URL, model and key.
type ChatClient struct {
	httpClient  *http.Client
	temperature float64
	maxTokens   int
	log         *zap.Logger
}

func NewChatClient(log *zap.Logger) *ChatClient {
	return &ChatClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		temperature: 0.7,
		maxTokens:   4096,
		log:         log,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var errEmptyCompletion = errors.New("response has no choices")

func (c *ChatClient) Complete(ctx context.Context, p config.LLMProvider, messages []ChatMessage) (string, error) {
	ctx, span := tracing.Tracer("llm").Start(ctx, "ChatClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", p.Name),
		attribute.String("llm.model", p.Model),
		attribute.Int("llm.messages", len(messages)),
	)

	text, err := c.complete(ctx, p, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return "", err
	}
	return text, nil
}

func (c *ChatClient) complete(ctx context.Context, p config.LLMProvider, messages []ChatMessage) (string, error) {
	reqBody := chatRequest{
		Model:       p.Model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if p.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	c.log.Debug("chat completion",
		zap.String("provider", p.Name),
		zap.String("model", p.Model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode == http.StatusServiceUnavailable && p.Name == config.ProviderHuggingFace {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: "model is loading, please retry in a few seconds"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errEmptyCompletion
	}
	// An empty message is still model output; the caller's parser rejects it.
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
