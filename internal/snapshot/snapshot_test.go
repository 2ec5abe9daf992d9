package snapshot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erg0nix/chatdesk/internal/core"
	"github.com/erg0nix/chatdesk/internal/session"
)

// echoCompleter answers deterministically from the conversation length so two
// engines with equal state produce equal answers.
type echoCompleter struct {
	finish string
}

func (c echoCompleter) Complete(_ context.Context, model string, messages []core.Message) (core.Completion, error) {
	finish := c.finish
	if finish == "" {
		finish = "stop"
	}

	last := messages[len(messages)-1].Content
	return core.Completion{
		Content:      fmt.Sprintf("%s heard %q after %d messages", model, last, len(messages)),
		FinishReason: &finish,
		Usage: map[string]any{
			"prompt_tokens":     float64(len(messages) * 11),
			"completion_tokens": float64(len(last)),
			"total_tokens":      float64(len(messages)*11 + len(last)),
		},
	}, nil
}

func echoDialer(apiKey string) (session.Completer, error) {
	return echoCompleter{}, nil
}

func buildEngine(t *testing.T) *session.Engine {
	t.Helper()

	engine, err := session.New(session.Options{APIKey: "sk-test", MaxContext: 5000}, echoCompleter{})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = engine.Request(ctx, "first")
	require.NoError(t, err)
	_, err = engine.Request(ctx, "second")
	require.NoError(t, err)
	engine.NewSession()
	_, err = engine.Request(ctx, "third")
	require.NoError(t, err)
	engine.ChangeSystemMessage("Be terse")
	_, err = engine.Request(ctx, "fourth")
	require.NoError(t, err)

	return engine
}

func TestSerialize_CapturesEverything(t *testing.T) {
	engine := buildEngine(t)
	snap := Serialize(engine)

	assert.Equal(t, "gpt-4o-mini", snap.Version)
	assert.Equal(t, "Be terse", snap.SystemMessage)
	assert.Equal(t, "sk-test", snap.APIKey)
	assert.Equal(t, 5000, snap.MaxContext)
	assert.Equal(t, 1, snap.RequestCount)
	assert.Len(t, snap.Messages, 3)
	assert.Equal(t, []string{"fourth"}, snap.Inputs)
	assert.Len(t, snap.SessionsInfo, 2)
	assert.Equal(t, []string{"first", "second"}, snap.SessionsInfo[0].Inputs)
	assert.Equal(t, []string{"third"}, snap.SessionsInfo[1].Inputs)
	assert.Len(t, snap.FinishReasons, 1)
	require.NotNil(t, snap.TotalTokens)
}

func TestRoundTrip_Idempotent(t *testing.T) {
	engine := buildEngine(t)
	first := Serialize(engine)

	loaded, err := Load(first, echoDialer)
	require.NoError(t, err)
	assert.Equal(t, first, Serialize(loaded))

	data, err := first.Encode()
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, first, decoded)

	reloaded, err := Load(decoded, echoDialer)
	require.NoError(t, err)
	assert.Equal(t, first, Serialize(reloaded))
}

func TestRoundTrip_FreshEngine(t *testing.T) {
	engine, err := session.New(session.Options{APIKey: "sk-test"}, echoCompleter{})
	require.NoError(t, err)

	snap := Serialize(engine)
	data, err := snap.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_tokens":null`)
	assert.Contains(t, string(data), `"inputs":[]`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	loaded, err := Load(decoded, echoDialer)
	require.NoError(t, err)
	assert.Equal(t, snap, Serialize(loaded))
}

func TestRoundTrip_BehavesIdentically(t *testing.T) {
	original := buildEngine(t)

	data, err := Serialize(original).Encode()
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	loaded, err := Load(decoded, echoDialer)
	require.NoError(t, err)

	ctx := context.Background()
	for _, prompt := range []string{"fifth", "sixth"} {
		a, errA := original.Request(ctx, prompt)
		b, errB := loaded.Request(ctx, prompt)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b)
	}

	assert.Equal(t, original.NewSession(), loaded.NewSession())
	assert.Equal(t, Serialize(original), Serialize(loaded))
}

func TestMapForm(t *testing.T) {
	snap := Serialize(buildEngine(t))

	m, err := snap.ToMap()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", m["version"])
	assert.Equal(t, float64(1), m["request_count"])

	back, err := FromMap(m)
	require.NoError(t, err)
	assert.Equal(t, snap, back)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{"version":`},
		{name: "type mismatch", data: `{"version":"gpt-4o","request_count":"three"}`},
		{name: "unknown field", data: `{"version":"gpt-4o","client":"live"}`},
		{name: "messages not a list", data: `{"messages":{"role":"system"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, session.IsDeserialization(err), "got %v", err)
		})
	}

	_, err := FromMap(nil)
	assert.True(t, session.IsDeserialization(err))
}

func TestLoad_MissingOrInvalidFields(t *testing.T) {
	valid := Serialize(buildEngine(t))

	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{name: "missing version", mutate: func(s *Snapshot) { s.Version = "" }},
		{name: "missing key", mutate: func(s *Snapshot) { s.APIKey = "" }},
		{name: "no messages", mutate: func(s *Snapshot) { s.Messages = nil }},
		{name: "unknown role", mutate: func(s *Snapshot) { s.Messages[1].Role = "tool" }},
		{name: "unsupported version", mutate: func(s *Snapshot) { s.Version = "gpt-2" }},
		{name: "missing budget", mutate: func(s *Snapshot) { s.MaxContext = 0 }},
		{name: "count mismatch", mutate: func(s *Snapshot) { s.RequestCount = 4 }},
		{name: "system drift", mutate: func(s *Snapshot) { s.SystemMessage = "Be verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := valid.Encode()
			require.NoError(t, err)
			snap, err := Decode(data)
			require.NoError(t, err)

			tt.mutate(&snap)

			_, err = Load(snap, echoDialer)
			require.Error(t, err)
			assert.True(t, session.IsDeserialization(err), "got %v", err)
		})
	}
}

func TestLoad_DialFailure(t *testing.T) {
	snap := Serialize(buildEngine(t))
	cause := errors.New("bad key")

	_, err := Load(snap, func(string) (session.Completer, error) { return nil, cause })
	require.Error(t, err)
	assert.True(t, session.IsConfiguration(err))
	assert.ErrorIs(t, err, cause)
}
