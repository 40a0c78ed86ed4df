// Package insights writes the narrative text around completions: encouragement,
// weekly insights, greetings, tips and therapist summaries. Every method has a
// deterministic fallback so the app works without an LLM.
package insights

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/cppla/bravesteps/config"
)

// ChatMessage is one turn of a chat completion prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// JSONSchema asks the model for structured output.
type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type ChatRequest struct {
	Messages []ChatMessage
	Schema   *JSONSchema
}

// ChatClient returns the assistant's reply text.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	http    *http.Client
	baseURL string
	model   string
}

// NewClient builds a client from config. It returns nil when no endpoint is configured.
// Credentials come from an OAuth2 client-credentials flow when LLMTokenURL is set,
// otherwise from a static bearer API key.
func NewClient(cfg config.AppConfig) *OpenAIClient {
	if cfg.LLMBaseURL == "" {
		return nil
	}
	timeout := time.Duration(cfg.LLMTimeoutSec) * time.Second
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	var hc *http.Client
	switch {
	case cfg.LLMTokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.LLMClientID,
			ClientSecret: cfg.LLMClientSecret,
			TokenURL:     cfg.LLMTokenURL,
		}
		hc = cc.Client(ctx)
	case cfg.LLMAPIKey != "":
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.LLMAPIKey, TokenType: "Bearer"}))
	default:
		hc = base
	}
	hc.Timeout = timeout
	return &OpenAIClient{http: hc, baseURL: strings.TrimRight(cfg.LLMBaseURL, "/"), model: cfg.LLMModel}
}

type chatPayload struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var errEmptyReply = errors.New("llm: empty reply")

func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	p := chatPayload{Model: c.model, Messages: req.Messages}
	if req.Schema != nil {
		p.ResponseFormat = &responseFormat{Type: "json_schema", JSONSchema: req.Schema}
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llm: decode reply: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errEmptyReply
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
