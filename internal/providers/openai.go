package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/erg0nix/chatdesk/internal/config"
	"github.com/erg0nix/chatdesk/internal/core"
)

const DefaultEndpoint = "https://api.openai.com/v1"

type OpenAIConfig struct {
	Endpoint string
	APIKey   string
	// HTTPTimeout of zero leaves the call unbounded; callers cancel through the context.
	HTTPTimeout time.Duration
}

// OpenAIProvider issues non-streaming chat completions. It never retries.
type OpenAIProvider struct {
	client  *resty.Client
	traffic *TrafficLog
}

func NewOpenAIProvider(cfg OpenAIConfig, debugCfg config.DebugConfig) *OpenAIProvider {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	client := resty.New().
		SetBaseURL(endpoint).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	if cfg.HTTPTimeout > 0 {
		client.SetTimeout(cfg.HTTPTimeout)
	}

	return &OpenAIProvider{client: client, traffic: NewTrafficLog(debugCfg, slog.Default())}
}

func (p *OpenAIProvider) Complete(ctx context.Context, model string, messages []core.Message) (core.Completion, error) {
	requestID := core.NewRequestID()

	msgJSON := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		msgJSON = append(msgJSON, map[string]any{"role": string(message.Role), "content": message.Content})
	}

	payload := map[string]any{
		"model":    model,
		"messages": msgJSON,
		"stream":   false,
	}

	p.traffic.Request(requestID, model, messages)

	startTime := time.Now()
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/chat/completions")
	duration := time.Since(startTime)

	if err != nil {
		p.traffic.Failure(requestID, 0, err.Error(), messages)
		return core.Completion{}, fmt.Errorf("provider request failed (request_id=%s): %w", requestID, err)
	}

	if httpResp.IsError() {
		bodyBytes := httpResp.Body()

		p.traffic.Failure(requestID, httpResp.StatusCode(), string(bodyBytes), messages)

		if message := apiErrorMessage(bodyBytes); message != "" {
			return core.Completion{}, fmt.Errorf("provider error (request_id=%s): %s: %s", requestID, httpResp.Status(), message)
		}

		return core.Completion{}, fmt.Errorf("provider error (request_id=%s): %s", requestID, httpResp.Status())
	}

	decoder := json.NewDecoder(bytes.NewReader(httpResp.Body()))
	decoder.UseNumber()

	var responsePayload map[string]any
	if err := decoder.Decode(&responsePayload); err != nil {
		p.traffic.Failure(requestID, httpResp.StatusCode(), err.Error(), messages)
		return core.Completion{}, fmt.Errorf("provider response decode failed (request_id=%s): %w", requestID, err)
	}

	completion, err := parseResponsePayload(responsePayload)
	if err != nil {
		p.traffic.Failure(requestID, httpResp.StatusCode(), err.Error(), messages)
		return core.Completion{}, fmt.Errorf("provider response parse failed (request_id=%s): %w", requestID, err)
	}

	p.traffic.Response(requestID, completion, duration)

	return completion, nil
}

func parseResponsePayload(payload map[string]any) (core.Completion, error) {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return core.Completion{}, errors.New("no choices in response")
	}

	choice, ok := choices[0].(map[string]any)
	if !ok {
		return core.Completion{}, errors.New("malformed choice in response")
	}

	message, ok := choice["message"].(map[string]any)
	if !ok {
		return core.Completion{}, errors.New("malformed message in response")
	}

	content, _ := message["content"].(string)
	id, _ := payload["id"].(string)

	var finishReason *string
	switch v := choice["finish_reason"].(type) {
	case string:
		finishReason = &v
	case nil:
	default:
		text := fmt.Sprint(v)
		finishReason = &text
	}

	usage, _ := payload["usage"].(map[string]any)

	return core.Completion{
		ID:           id,
		Content:      content,
		FinishReason: finishReason,
		Usage:        usage,
	}, nil
}

// apiErrorMessage extracts error.message from an OpenAI error body, falling
// back to the trimmed body text.
func apiErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}

	return strings.TrimSpace(string(body))
}
