// Package llm is a minimal client for OpenAI-compatible chat-completions
// endpoints, covering exactly what the assistant needs: a system prompt,
// conversation history and function tools.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"calendar-chat/internal/circuitbreaker"
	"calendar-chat/internal/common/errors"
	commonhttp "calendar-chat/internal/common/http"
	"calendar-chat/internal/common/logging"
)

// DefaultBaseURL targets the OpenAI API; any compatible endpoint works
const DefaultBaseURL = "https://api.openai.com/v1"

// Message is one entry in the conversation sent to the model
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is the model's request to invoke a function tool. Arguments is
// the raw JSON string exactly as the model produced it.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its JSON-encoded arguments
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a function the model may call
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes a callable tool with a JSON-schema parameter spec
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Usage reports token consumption for one completion
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResult is the assistant's turn: text content, tool calls the
// model wants executed, or both.
type CompletionResult struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Config holds the provider endpoint and credentials
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// Client calls an OpenAI-compatible chat-completions endpoint
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
	logger     logging.Logger
}

// NewClient validates the config and creates a Client. A nil httpClient
// falls back to a default with a generous timeout; completions are slow.
func NewClient(config Config, httpClient *http.Client) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.ConfigError("llm client requires an API key")
	}
	if config.Model == "" {
		return nil, errors.ConfigError("llm client requires a model")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if httpClient == nil {
		httpClient = commonhttp.NewHTTPClientWithTimeout(120 * time.Second)
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		breaker:    circuitbreaker.NewGoBreaker("llm-api", circuitbreaker.HTTPConfig, nil),
		logger:     logging.GetGlobalLogger(),
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the conversation and returns the assistant's turn
func (c *Client) Complete(ctx context.Context, messages []Message, tools []Tool) (*CompletionResult, error) {
	if len(messages) == 0 {
		return nil, errors.ValidationError("completion requires at least one message")
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return nil, errors.InternalError("failed to encode completion request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.InternalError("failed to build completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	var resp *http.Response
	err = c.breaker.Execute(ctx, func() error {
		var httpErr error
		resp, httpErr = c.httpClient.Do(req)
		return httpErr
	})
	if err != nil {
		return nil, errors.ConnectionError("completion request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.ConnectionError("failed to read completion response", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errors.UpstreamError(
				fmt.Sprintf("llm provider returned status %d", resp.StatusCode), resp.StatusCode)
		}
		return nil, errors.InternalError("failed to decode completion response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("llm provider returned status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = fmt.Sprintf("llm provider error: %s", parsed.Error.Message)
		}
		return nil, errors.UpstreamError(msg, resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return nil, errors.UpstreamError("llm provider returned no choices", resp.StatusCode)
	}

	choice := parsed.Choices[0]
	c.logger.Debug("Completion finished",
		logging.Field{Key: "finish_reason", Value: choice.FinishReason},
		logging.Field{Key: "tool_calls", Value: len(choice.Message.ToolCalls)},
		logging.Field{Key: "total_tokens", Value: parsed.Usage.TotalTokens},
	)

	return &CompletionResult{
		Content:   choice.Message.Content,
		ToolCalls: choice.Message.ToolCalls,
		Usage:     parsed.Usage,
	}, nil
}
