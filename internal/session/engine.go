// Package session implements the conversation engine: it keeps the linear
// chat history for one model, enforces the context budget, prices every
// request and archives the conversation when a new session starts.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/erg0nix/chatdesk/internal/core"
	"github.com/erg0nix/chatdesk/internal/models"
)

// Completer issues one chat completion against the remote service.
type Completer interface {
	Complete(ctx context.Context, model string, messages []core.Message) (core.Completion, error)
}

// Exchange is the result of a successful request.
type Exchange struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Engine owns one conversation. All methods are safe to call from several
// goroutines; they are serialized on a single mutex, including the remote call.
type Engine struct {
	mu     sync.Mutex
	config ModelConfig
	state  ConversationState
	client Completer
	logger *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New builds an engine with an empty conversation.
func New(opts Options, client Completer, options ...Option) (*Engine, error) {
	cfg, err := NewModelConfig(opts)
	if err != nil {
		newEngine(client, options).logger.Error("error while creating model", "error", err)
		return nil, err
	}

	return FromConfig(cfg, client, options...)
}

// FromConfig builds an engine with an empty conversation from an already
// validated config.
func FromConfig(cfg ModelConfig, client Completer, options ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if client == nil {
		return nil, NewError(KindConfiguration, "no completion client")
	}

	engine := newEngine(client, options)
	engine.config = cfg
	engine.state = freshState(cfg.SystemMessage, []Archive{})

	return engine, nil
}

// Restore rebuilds an engine from previously captured config and state
// without applying construction defaults.
func Restore(cfg ModelConfig, state ConversationState, client Completer, options ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, &Error{Kind: KindDeserialization, Message: "restore model config", wrapped: err}
	}

	if client == nil {
		return nil, NewError(KindConfiguration, "no completion client")
	}

	state = state.Clone()
	if err := validateState(cfg, state); err != nil {
		return nil, &Error{Kind: KindDeserialization, Message: "restore conversation state", wrapped: err}
	}

	engine := newEngine(client, options)
	engine.config = cfg
	engine.state = state

	return engine, nil
}

func newEngine(client Completer, options []Option) *Engine {
	engine := &Engine{client: client, logger: slog.Default()}
	for _, opt := range options {
		opt(engine)
	}
	return engine
}

// Request sends prompt with the whole conversation so far. State changes only
// when the call succeeds and the response parses; every failure leaves the
// engine exactly as it was.
func (e *Engine) Request(ctx context.Context, prompt string) (Exchange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Budget uses the usage reported by the previous call, not the pending prompt.
	if e.state.RequestCount > 0 && e.state.TotalTokens != nil && *e.state.TotalTokens >= e.config.MaxContext {
		err := NewError(KindContextExceeded, "max context exceeded: %d of %d tokens used", *e.state.TotalTokens, e.config.MaxContext)
		e.logger.Error("error requesting", "error", err)
		return Exchange{}, err
	}

	messages := make([]core.Message, 0, len(e.state.Messages)+1)
	messages = append(messages, e.state.Messages...)
	messages = append(messages, core.UserMessage(prompt))

	completion, err := e.client.Complete(ctx, e.config.Model, messages)
	if err != nil {
		wrapped := &Error{Kind: KindRequest, Message: "error requesting", wrapped: err}
		e.logger.Error("error requesting", "model", e.config.Model, "error", err)
		return Exchange{}, wrapped
	}

	detail, err := processCompletion(e.config.Model, completion)
	if err != nil {
		e.logger.Error("error processing response", "model", e.config.Model, "error", err)
		return Exchange{}, err
	}

	e.commit(prompt, detail)

	return Exchange{Prompt: prompt, Response: detail.Output}, nil
}

func (e *Engine) commit(prompt string, detail RequestDetail) {
	s := &e.state

	s.Inputs = append(s.Inputs, prompt)
	s.Messages = append(s.Messages, core.UserMessage(prompt))
	s.Requests = append(s.Requests, detail)
	s.Outputs = append(s.Outputs, detail.Output)
	s.Messages = append(s.Messages, core.AssistantMessage(detail.Output))

	inputTokens, outputTokens, totalTokens := detail.PromptTokens, detail.OutputTokens, detail.TotalTokens
	s.InputTokens = &inputTokens
	s.OutputTokens = &outputTokens
	s.TotalTokens = &totalTokens
	s.TotalPrice += detail.Price
	s.RequestCount++

	s.FinishReasons = append(s.FinishReasons, detail.FinishReason.Description())
}

func processCompletion(model string, completion core.Completion) (RequestDetail, error) {
	promptTokens, outputTokens, totalTokens, err := parseUsage(completion.Usage)
	if err != nil {
		return RequestDetail{}, WrapError(err, KindResponseParse, "error converting token counts to int and calculating price")
	}

	price, err := models.Price(model, promptTokens, outputTokens)
	if err != nil {
		return RequestDetail{}, WrapError(err, KindUnsupportedModel, "error calculating price")
	}

	code, err := ClassifyFinish(completion.FinishReason)
	if err != nil {
		return RequestDetail{}, err
	}

	return RequestDetail{
		Output:       completion.Content,
		PromptTokens: promptTokens,
		OutputTokens: outputTokens,
		TotalTokens:  totalTokens,
		FinishReason: code,
		Price:        price,
	}, nil
}

func parseUsage(usage map[string]any) (int, int, int, error) {
	if usage == nil {
		return 0, 0, 0, fmt.Errorf("usage missing from response")
	}

	fields := [3]string{"prompt_tokens", "completion_tokens", "total_tokens"}
	var counts [3]int

	for i, field := range fields {
		raw, ok := usage[field]
		if !ok {
			return 0, 0, 0, fmt.Errorf("usage field %s missing", field)
		}

		n, ok := core.IntFromAny(raw)
		if !ok {
			return 0, 0, 0, fmt.Errorf("usage field %s is not a valid token count: %v", field, raw)
		}
		counts[i] = n
	}

	return counts[0], counts[1], counts[2], nil
}

// NewSession archives the current conversation and starts an empty one under
// the same system message. It returns the archive that was recorded.
func (e *Engine) NewSession() Archive {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.rollover()
}

func (e *Engine) rollover() Archive {
	archived := e.state.archive()
	archives := append(e.state.Archives, archived)

	e.state = freshState(e.config.SystemMessage, archives)
	e.logger.Info("session cleared", "archives", len(archives))

	return archived.Clone()
}

// ChangeSystemMessage swaps the instruction and always starts a fresh
// conversation; the old one is archived under the old instruction.
func (e *Engine) ChangeSystemMessage(text string) Archive {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.config = e.config.withSystemMessage(text)
	e.state.Messages[0] = core.SystemMessage(text)

	return e.rollover()
}

// Info is a read-only view of the engine.
type Info struct {
	Messages      []core.Message `json:"messages"`
	Inputs        []string       `json:"inputs"`
	Outputs       []string       `json:"outputs"`
	TotalPrice    float64        `json:"total_price"`
	InputTokens   *int           `json:"input_tokens"`
	OutputTokens  *int           `json:"output_tokens"`
	TotalTokens   *int           `json:"total_tokens"`
	RequestCount  int            `json:"request_count"`
	FinishReasons []string       `json:"f_reasons"`
	Sessions      []Archive      `json:"sessions"`
}

func (e *Engine) Info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state.Clone()

	return Info{
		Messages:      s.Messages,
		Inputs:        s.Inputs,
		Outputs:       s.Outputs,
		TotalPrice:    s.TotalPrice,
		InputTokens:   s.InputTokens,
		OutputTokens:  s.OutputTokens,
		TotalTokens:   s.TotalTokens,
		RequestCount:  s.RequestCount,
		FinishReasons: s.FinishReasons,
		Sessions:      s.Archives,
	}
}

func (e *Engine) Config() ModelConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.config
}

// State returns a deep copy of the conversation state.
func (e *Engine) State() ConversationState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state.Clone()
}

// LastFinishReason returns the description recorded for the latest request.
func (e *Engine) LastFinishReason() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.state.FinishReasons)
	if n == 0 {
		return "", false
	}
	return e.state.FinishReasons[n-1], true
}

func (e *Engine) String() string {
	cfg := e.Config()
	return fmt.Sprintf("%s Wrapper, with System Message :%s", cfg.Model, cfg.SystemMessage)
}

func (e *Engine) GoString() string {
	cfg := e.Config()
	return fmt.Sprintf("Engine(version=%q,system_msg=%q,api_key=%q,max_context=%d)",
		cfg.Model, cfg.SystemMessage, redact(cfg.APIKey), cfg.MaxContext)
}

func redact(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
