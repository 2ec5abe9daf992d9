package session

import (
	"slices"

	"github.com/erg0nix/chatdesk/internal/core"
)

// RequestDetail is recorded once per successful request.
type RequestDetail struct {
	Output       string     `json:"output"`
	PromptTokens int        `json:"prompt_tokens"`
	OutputTokens int        `json:"output_tokens"`
	TotalTokens  int        `json:"total_tokens"`
	FinishReason FinishCode `json:"finish_reason"`
	Price        float64    `json:"price"`
}

// Archive is the frozen record of a session taken at rollover.
type Archive struct {
	TotalTokens  *int            `json:"total_tokens"`
	TotalPrice   float64         `json:"total_price"`
	Inputs       []string        `json:"inputs"`
	Outputs      []string        `json:"outputs"`
	Requests     []RequestDetail `json:"requests_info"`
	InputTokens  *int            `json:"input_tokens"`
	OutputTokens *int            `json:"output_tokens"`
	RequestCount int             `json:"request_count"`
}

// ConversationState is the mutable part of an engine. Messages[0] is always the
// current system message; every successful request appends one user and one
// assistant message.
type ConversationState struct {
	Messages      []core.Message
	Inputs        []string
	Outputs       []string
	RequestCount  int
	InputTokens   *int
	OutputTokens  *int
	TotalTokens   *int
	TotalPrice    float64
	Requests      []RequestDetail
	FinishReasons []string
	Archives      []Archive
}

func freshState(systemMessage string, archives []Archive) ConversationState {
	return ConversationState{
		Messages:      []core.Message{core.SystemMessage(systemMessage)},
		Inputs:        []string{},
		Outputs:       []string{},
		Requests:      []RequestDetail{},
		FinishReasons: []string{},
		Archives:      archives,
	}
}

func (s ConversationState) archive() Archive {
	return Archive{
		TotalTokens:  cloneInt(s.TotalTokens),
		TotalPrice:   s.TotalPrice,
		Inputs:       cloneSlice(s.Inputs),
		Outputs:      cloneSlice(s.Outputs),
		Requests:     cloneSlice(s.Requests),
		InputTokens:  cloneInt(s.InputTokens),
		OutputTokens: cloneInt(s.OutputTokens),
		RequestCount: s.RequestCount,
	}
}

// Clone returns a deep copy that shares no memory with s.
func (s ConversationState) Clone() ConversationState {
	archives := make([]Archive, len(s.Archives))
	for i, a := range s.Archives {
		archives[i] = a.Clone()
	}

	return ConversationState{
		Messages:      cloneSlice(s.Messages),
		Inputs:        cloneSlice(s.Inputs),
		Outputs:       cloneSlice(s.Outputs),
		RequestCount:  s.RequestCount,
		InputTokens:   cloneInt(s.InputTokens),
		OutputTokens:  cloneInt(s.OutputTokens),
		TotalTokens:   cloneInt(s.TotalTokens),
		TotalPrice:    s.TotalPrice,
		Requests:      cloneSlice(s.Requests),
		FinishReasons: cloneSlice(s.FinishReasons),
		Archives:      archives,
	}
}

func (a Archive) Clone() Archive {
	return Archive{
		TotalTokens:  cloneInt(a.TotalTokens),
		TotalPrice:   a.TotalPrice,
		Inputs:       cloneSlice(a.Inputs),
		Outputs:      cloneSlice(a.Outputs),
		Requests:     cloneSlice(a.Requests),
		InputTokens:  cloneInt(a.InputTokens),
		OutputTokens: cloneInt(a.OutputTokens),
		RequestCount: a.RequestCount,
	}
}

// cloneSlice never returns nil so that empty sequences serialize as [].
func cloneSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return slices.Clone(in)
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
