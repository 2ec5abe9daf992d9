package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erg0nix/chatdesk/internal/core"
)

type fakeCompleter struct {
	calls     [][]core.Message
	models    []string
	responses []core.Completion
	err       error
}

func (f *fakeCompleter) Complete(_ context.Context, model string, messages []core.Message) (core.Completion, error) {
	f.calls = append(f.calls, append([]core.Message(nil), messages...))
	f.models = append(f.models, model)

	if f.err != nil {
		return core.Completion{}, f.err
	}

	if len(f.responses) == 0 {
		n := len(f.calls)
		return completion(fmt.Sprintf("answer %d", n), "stop", 10*n, 5*n), nil
	}

	next := f.responses[0]
	f.responses = f.responses[1:]
	return next, nil
}

func completion(content, finish string, promptTokens, completionTokens int) core.Completion {
	return core.Completion{
		Content:      content,
		FinishReason: &finish,
		Usage: map[string]any{
			"prompt_tokens":     float64(promptTokens),
			"completion_tokens": float64(completionTokens),
			"total_tokens":      float64(promptTokens + completionTokens),
		},
	}
}

func newTestEngine(t *testing.T, client Completer, opts Options) *Engine {
	t.Helper()

	if opts.APIKey == "" {
		opts.APIKey = "sk-test"
	}

	engine, err := New(opts, client)
	require.NoError(t, err)
	return engine
}

func TestNew_Defaults(t *testing.T) {
	engine := newTestEngine(t, &fakeCompleter{}, Options{})

	cfg := engine.Config()
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, DefaultSystemMessage, cfg.SystemMessage)
	assert.Equal(t, 100000, cfg.MaxContext)

	state := engine.State()
	assert.Equal(t, []core.Message{core.SystemMessage(DefaultSystemMessage)}, state.Messages)
	assert.Zero(t, state.RequestCount)
	assert.Nil(t, state.TotalTokens)
	assert.Nil(t, state.InputTokens)
	assert.Nil(t, state.OutputTokens)
	assert.Zero(t, state.TotalPrice)
	assert.Empty(t, state.Archives)
}

func TestNew_SystemMessageSentinel(t *testing.T) {
	engine := newTestEngine(t, &fakeCompleter{}, Options{SystemMessage: "default"})
	assert.Equal(t, "You are a helpful assistant.", engine.Config().SystemMessage)

	engine = newTestEngine(t, &fakeCompleter{}, Options{SystemMessage: "Speak like a pirate."})
	assert.Equal(t, "Speak like a pirate.", engine.State().Messages[0].Content)
}

func TestNew_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "unsupported model", opts: Options{Model: "gpt-2", APIKey: "k"}},
		{name: "no credential", opts: Options{}},
		{name: "lookup finds nothing", opts: Options{LookupAPIKey: func() (string, error) { return "", nil }}},
		{name: "lookup fails", opts: Options{LookupAPIKey: func() (string, error) { return "", errors.New("no .env") }}},
		{name: "negative budget", opts: Options{APIKey: "k", MaxContext: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts, &fakeCompleter{})
			require.Error(t, err)
			assert.True(t, IsConfiguration(err), "got %v", err)
		})
	}
}

func TestNew_LookupAPIKey(t *testing.T) {
	engine, err := New(Options{LookupAPIKey: func() (string, error) { return "sk-env", nil }}, &fakeCompleter{})
	require.NoError(t, err)
	assert.Equal(t, "sk-env", engine.Config().APIKey)

	called := false
	engine, err = New(Options{APIKey: "sk-explicit", LookupAPIKey: func() (string, error) {
		called = true
		return "sk-env", nil
	}}, &fakeCompleter{})
	require.NoError(t, err)
	assert.Equal(t, "sk-explicit", engine.Config().APIKey)
	assert.False(t, called)
}

func TestRequest_AccumulatesState(t *testing.T) {
	client := &fakeCompleter{}
	engine := newTestEngine(t, client, Options{Model: "gpt-4o"})

	const n = 3
	for i := 1; i <= n; i++ {
		exchange, err := engine.Request(context.Background(), fmt.Sprintf("question %d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("question %d", i), exchange.Prompt)
		assert.Equal(t, fmt.Sprintf("answer %d", i), exchange.Response)
	}

	state := engine.State()
	assert.Equal(t, n, state.RequestCount)
	assert.Len(t, state.Inputs, n)
	assert.Len(t, state.Outputs, n)
	assert.Len(t, state.Requests, n)
	assert.Len(t, state.FinishReasons, n)
	assert.Len(t, state.Messages, 1+2*n)

	require.NotNil(t, state.TotalTokens)
	assert.Equal(t, 30, *state.InputTokens)
	assert.Equal(t, 15, *state.OutputTokens)
	assert.Equal(t, 45, *state.TotalTokens)

	wantPrice := 0.0
	for i := 1; i <= n; i++ {
		wantPrice += float64(10*i)*5/1e6 + float64(5*i)*15/1e6
	}
	assert.InDelta(t, wantPrice, state.TotalPrice, 1e-12)

	for i, msg := range state.Messages[1:] {
		if i%2 == 0 {
			assert.Equal(t, core.RoleUser, msg.Role)
		} else {
			assert.Equal(t, core.RoleAssistant, msg.Role)
		}
	}

	require.Len(t, client.calls, n)
	assert.Len(t, client.calls[2], 6, "third call carries system, two exchanges and the new prompt")
	assert.Equal(t, core.RoleSystem, client.calls[2][0].Role)
	assert.Equal(t, "question 3", client.calls[2][5].Content)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o", "gpt-4o"}, client.models)
}

func TestRequest_ContextExceeded(t *testing.T) {
	client := &fakeCompleter{responses: []core.Completion{completion("long", "stop", 80, 20)}}
	engine := newTestEngine(t, client, Options{MaxContext: 100})

	_, err := engine.Request(context.Background(), "first")
	require.NoError(t, err)

	before := engine.State()

	_, err = engine.Request(context.Background(), "second")
	require.Error(t, err)
	assert.True(t, IsContextExceeded(err), "got %v", err)
	assert.Len(t, client.calls, 1, "remote service must not be called")
	assert.Equal(t, before, engine.State())
}

func TestRequest_BudgetUsesPreviousUsage(t *testing.T) {
	client := &fakeCompleter{responses: []core.Completion{
		completion("a", "stop", 60, 39),
		completion("b", "stop", 150, 50),
	}}
	engine := newTestEngine(t, client, Options{MaxContext: 100})

	_, err := engine.Request(context.Background(), "first")
	require.NoError(t, err)

	// 99 < 100, so the second call goes out even though it will overshoot.
	_, err = engine.Request(context.Background(), "second")
	require.NoError(t, err)

	_, err = engine.Request(context.Background(), "third")
	assert.True(t, IsContextExceeded(err))
}

func TestRequest_RemoteFailureLeavesStateUntouched(t *testing.T) {
	cause := errors.New("connection refused")
	client := &fakeCompleter{err: cause}
	engine := newTestEngine(t, client, Options{})
	before := engine.State()

	_, err := engine.Request(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, IsRequest(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, before, engine.State())
}

func TestRequest_ResponseParseErrors(t *testing.T) {
	stop := "stop"
	tests := []struct {
		name  string
		usage map[string]any
	}{
		{name: "no usage", usage: nil},
		{name: "missing total", usage: map[string]any{"prompt_tokens": 1.0, "completion_tokens": 1.0}},
		{name: "non numeric", usage: map[string]any{"prompt_tokens": "lots", "completion_tokens": 1.0, "total_tokens": 2.0}},
		{name: "negative completion", usage: map[string]any{"prompt_tokens": 10.0, "completion_tokens": -5.0, "total_tokens": 5.0}},
		{name: "total beyond int range", usage: map[string]any{"prompt_tokens": 10.0, "completion_tokens": 5.0, "total_tokens": "99999999999999999999"}},
		{name: "infinite prompt", usage: map[string]any{"prompt_tokens": math.Inf(1), "completion_tokens": 5.0, "total_tokens": 15.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeCompleter{responses: []core.Completion{{Content: "x", FinishReason: &stop, Usage: tt.usage}}}
			engine := newTestEngine(t, client, Options{})
			before := engine.State()

			_, err := engine.Request(context.Background(), "hello")
			require.Error(t, err)
			assert.True(t, IsResponseParse(err), "got %v", err)
			assert.Equal(t, before, engine.State())
		})
	}
}

func TestRequest_UnknownFinishReason(t *testing.T) {
	client := &fakeCompleter{responses: []core.Completion{completion("x", "tool_calls", 1, 1)}}
	engine := newTestEngine(t, client, Options{})

	_, err := engine.Request(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, IsUnknownFinishReason(err))
	assert.Zero(t, engine.State().RequestCount)
}

func TestRequest_IncompleteFinishIsRecorded(t *testing.T) {
	client := &fakeCompleter{responses: []core.Completion{
		completion("cut", "length", 5, 5),
		{Content: "", Usage: map[string]any{"prompt_tokens": 1.0, "completion_tokens": 0.0, "total_tokens": 1.0}},
	}}
	engine := newTestEngine(t, client, Options{})

	_, err := engine.Request(context.Background(), "one")
	require.NoError(t, err)
	_, err = engine.Request(context.Background(), "two")
	require.NoError(t, err)

	state := engine.State()
	assert.Equal(t, []string{FinishLength.Description(), FinishNull.Description()}, state.FinishReasons)
	assert.Equal(t, FinishLength, state.Requests[0].FinishReason)
	assert.Equal(t, FinishNull, state.Requests[1].FinishReason)

	last, ok := engine.LastFinishReason()
	assert.True(t, ok)
	assert.Equal(t, FinishNull.Description(), last)
}

func TestNewSession_ArchivesAndResets(t *testing.T) {
	engine := newTestEngine(t, &fakeCompleter{}, Options{})

	_, err := engine.Request(context.Background(), "one")
	require.NoError(t, err)
	_, err = engine.Request(context.Background(), "two")
	require.NoError(t, err)

	before := engine.State()
	archived := engine.NewSession()
	after := engine.State()

	assert.Zero(t, after.RequestCount)
	assert.Equal(t, []core.Message{core.SystemMessage(DefaultSystemMessage)}, after.Messages)
	assert.Empty(t, after.Inputs)
	assert.Empty(t, after.Outputs)
	assert.Empty(t, after.Requests)
	assert.Nil(t, after.TotalTokens)
	assert.Zero(t, after.TotalPrice)

	require.Len(t, after.Archives, 1)
	assert.Equal(t, archived, after.Archives[0])
	assert.Equal(t, before.RequestCount, archived.RequestCount)
	assert.Equal(t, before.Inputs, archived.Inputs)
	assert.Equal(t, before.Outputs, archived.Outputs)
	assert.Equal(t, before.Requests, archived.Requests)
	assert.Equal(t, before.TotalTokens, archived.TotalTokens)
	assert.Equal(t, before.TotalPrice, archived.TotalPrice)
}

func TestNewSession_FinishReasonsStayWithEngine(t *testing.T) {
	engine := newTestEngine(t, &fakeCompleter{}, Options{})

	_, err := engine.Request(context.Background(), "one")
	require.NoError(t, err)
	engine.NewSession()

	assert.Empty(t, engine.Info().FinishReasons)
}

func TestArchiveIsNotMutatedByLaterRequests(t *testing.T) {
	engine := newTestEngine(t, &fakeCompleter{}, Options{})

	_, err := engine.Request(context.Background(), "one")
	require.NoError(t, err)
	archived := engine.NewSession()

	_, err = engine.Request(context.Background(), "two")
	require.NoError(t, err)

	stored := engine.State().Archives[0]
	assert.Equal(t, archived, stored)
	assert.Equal(t, []string{"one"}, stored.Inputs)
}

func TestChangeSystemMessage(t *testing.T) {
	engine := newTestEngine(t, &fakeCompleter{}, Options{Model: "gpt-4o-mini", MaxContext: 100000})

	exchange, err := engine.Request(context.Background(), "Hello")
	require.NoError(t, err)
	assert.NotEmpty(t, exchange.Response)
	assert.Equal(t, 1, engine.State().RequestCount)

	archived := engine.ChangeSystemMessage("Be terse")

	state := engine.State()
	assert.Equal(t, []core.Message{core.SystemMessage("Be terse")}, state.Messages)
	assert.Len(t, state.Archives, 1)
	assert.Zero(t, state.RequestCount)
	assert.Equal(t, []string{"Hello"}, archived.Inputs)
	assert.Equal(t, "Be terse", engine.Config().SystemMessage)

	engine.NewSession()
	assert.Equal(t, "Be terse", engine.State().Messages[0].Content, "rollover keeps the new instruction")
}

func TestInfoIsReadOnly(t *testing.T) {
	engine := newTestEngine(t, &fakeCompleter{}, Options{})
	_, err := engine.Request(context.Background(), "one")
	require.NoError(t, err)

	info := engine.Info()
	info.Inputs[0] = "changed"
	info.Messages[0].Content = "changed"
	*info.TotalTokens = 0

	again := engine.Info()
	assert.Equal(t, "one", again.Inputs[0])
	assert.Equal(t, DefaultSystemMessage, again.Messages[0].Content)
	assert.Equal(t, 15, *again.TotalTokens)
}

func TestEngineStringers(t *testing.T) {
	engine := newTestEngine(t, &fakeCompleter{}, Options{APIKey: "sk-abcdef123456"})

	assert.Equal(t, "gpt-4o-mini Wrapper, with System Message :You are a helpful assistant.", engine.String())
	assert.NotContains(t, fmt.Sprintf("%#v", engine), "sk-abcdef123456")
	assert.Contains(t, fmt.Sprintf("%#v", engine), "****3456")
}
