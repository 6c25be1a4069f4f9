// Package llmclient wraps github.com/sashabaranov/go-openai the way the
// teacher's internal/clients/gcp wraps its GCP SDKs: a thin process-wide
// handle, constructed once, pointed at a configurable OpenAI-compatible
// endpoint. Grounded on original_source's compliance_service/src/service.py
// `_make_client` (an OpenAI client pointed at a self-hosted Ollama gateway)
// and on the model.Client adapter shape in
// _examples/goadesign-goa-ai/features/model/openai/client.go.
package llmclient

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clinicore/scribeflow/internal/config"
	"github.com/clinicore/scribeflow/internal/logger"
)

// ChatCompleter captures the subset of the go-openai client this module
// calls, so stage handlers can be tested against a deterministic fake
// instead of a live endpoint.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	chat        ChatCompleter
	model       string
	temperature float32
	jsonMode    bool
}

type Config struct {
	BaseURL     string
	Model       string
	Temperature float32
	JSONMode    bool
}

// NewFromEnv builds a client pointed at an OpenAI-compatible base URL (the
// self-hosted gateway fronting the compliance/SOAP models), matching the
// original's `{BASE_URL}/v1` + dummy API key pattern — these models run
// behind the operator's own network, not OpenAI's.
func NewFromEnv(prefix string, log *logger.Logger) (*Client, error) {
	baseURL := config.GetEnv(prefix+"_BASE_URL", "", log)
	if baseURL == "" {
		return nil, fmt.Errorf("llmclient: missing %s_BASE_URL", prefix)
	}
	model := config.GetEnv(prefix+"_MODEL", "gpt-oss", log)
	jsonMode := config.GetEnvAsBool(prefix+"_JSON_MODE", false, log)

	cfg := openai.DefaultConfig("dummy")
	cfg.BaseURL = baseURL + "/v1"
	return &Client{
		chat:        openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: 0.4,
		jsonMode:    jsonMode,
	}, nil
}

// NewWithCompleter lets stage handlers and tests inject a fake ChatCompleter.
func NewWithCompleter(chat ChatCompleter, cfg Config) *Client {
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.4
	}
	return &Client{chat: chat, model: cfg.Model, temperature: temp, jsonMode: cfg.JSONMode}
}

// Complete runs one system+user chat turn and returns the raw assistant
// content, matching the structure of _call_llm_with_guardrails before its
// JSON parsing/validation step.
func (c *Client) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		Temperature: c.temperature,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := c.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmclient: empty choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
