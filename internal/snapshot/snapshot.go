// Package snapshot converts engines to and from the flat, JSON-friendly form
// that crosses the GUI boundary. The live completion client is never part of
// a snapshot; Load builds a new one from the stored credential.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/erg0nix/chatdesk/internal/core"
	"github.com/erg0nix/chatdesk/internal/session"
)

type Snapshot struct {
	Version       string                  `json:"version"`
	SystemMessage string                  `json:"system_msg"`
	APIKey        string                  `json:"api_key"`
	MaxContext    int                     `json:"max_context"`
	Messages      []core.Message          `json:"messages"`
	Inputs        []string                `json:"inputs"`
	Outputs       []string                `json:"outputs"`
	TotalPrice    float64                 `json:"total_price"`
	TotalTokens   *int                    `json:"total_tokens"`
	InputTokens   *int                    `json:"input_tokens"`
	OutputTokens  *int                    `json:"output_tokens"`
	RequestCount  int                     `json:"request_count"`
	RequestsInfo  []session.RequestDetail `json:"requests_info"`
	SessionsInfo  []session.Archive       `json:"sessions_info"`
	FinishReasons []string                `json:"f_reasons"`
}

// Dialer builds the completion client for a credential.
type Dialer func(apiKey string) (session.Completer, error)

// Serialize captures every piece of engine state.
func Serialize(engine *session.Engine) Snapshot {
	cfg := engine.Config()
	state := engine.State()

	return Snapshot{
		Version:       cfg.Model,
		SystemMessage: cfg.SystemMessage,
		APIKey:        cfg.APIKey,
		MaxContext:    cfg.MaxContext,
		Messages:      state.Messages,
		Inputs:        state.Inputs,
		Outputs:       state.Outputs,
		TotalPrice:    state.TotalPrice,
		TotalTokens:   state.TotalTokens,
		InputTokens:   state.InputTokens,
		OutputTokens:  state.OutputTokens,
		RequestCount:  state.RequestCount,
		RequestsInfo:  state.Requests,
		SessionsInfo:  state.Archives,
		FinishReasons: state.FinishReasons,
	}
}

// Load rebuilds an engine from snap, restoring all state verbatim.
func Load(snap Snapshot, dial Dialer, options ...session.Option) (*session.Engine, error) {
	if err := snap.checkRequired(); err != nil {
		return nil, err
	}

	client, err := dial(snap.APIKey)
	if err != nil {
		return nil, session.WrapError(err, session.KindConfiguration, "create completion client")
	}

	cfg := session.ModelConfig{
		Model:         snap.Version,
		SystemMessage: snap.SystemMessage,
		MaxContext:    snap.MaxContext,
		APIKey:        snap.APIKey,
	}

	state := session.ConversationState{
		Messages:      snap.Messages,
		Inputs:        orEmpty(snap.Inputs),
		Outputs:       orEmpty(snap.Outputs),
		RequestCount:  snap.RequestCount,
		InputTokens:   snap.InputTokens,
		OutputTokens:  snap.OutputTokens,
		TotalTokens:   snap.TotalTokens,
		TotalPrice:    snap.TotalPrice,
		Requests:      orEmpty(snap.RequestsInfo),
		FinishReasons: orEmpty(snap.FinishReasons),
		Archives:      orEmpty(snap.SessionsInfo),
	}

	return session.Restore(cfg, state, client, options...)
}

func (s Snapshot) checkRequired() error {
	switch {
	case s.Version == "":
		return session.NewError(session.KindDeserialization, "snapshot is missing the model version")
	case s.APIKey == "":
		return session.NewError(session.KindDeserialization, "snapshot is missing the api key")
	case len(s.Messages) == 0:
		return session.NewError(session.KindDeserialization, "snapshot has no system message")
	}

	for i, msg := range s.Messages {
		if !msg.Role.Valid() {
			return session.NewError(session.KindDeserialization, "snapshot message %d has unknown role %q", i, msg.Role)
		}
	}

	return nil
}

// Encode renders snap as JSON.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses JSON produced by Encode (or by the GUI). Unknown fields and
// type mismatches are deserialization errors.
func Decode(data []byte) (Snapshot, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var snap Snapshot
	if err := decoder.Decode(&snap); err != nil {
		return Snapshot{}, session.WrapError(err, session.KindDeserialization, "decode snapshot")
	}

	return snap, nil
}

// FromMap accepts the generic object form a JSON transport hands over.
func FromMap(m map[string]any) (Snapshot, error) {
	if m == nil {
		return Snapshot{}, session.NewError(session.KindDeserialization, "snapshot is empty")
	}

	data, err := json.Marshal(m)
	if err != nil {
		return Snapshot{}, session.WrapError(fmt.Errorf("re-encode snapshot map: %w", err), session.KindDeserialization, "decode snapshot")
	}

	return Decode(data)
}

// ToMap renders snap as a map of JSON primitives.
func (s Snapshot) ToMap() (map[string]any, error) {
	data, err := s.Encode()
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
