package session

import (
	"fmt"

	"github.com/erg0nix/chatdesk/internal/core"
)

// ValidationError points at the first inconsistency found in restored state.
type ValidationError struct {
	Field   string
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s[%d]: %s", e.Field, e.Index, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field string, index int, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Index: index, Message: fmt.Sprintf(format, args...)}
}

// validateState checks the invariants a live engine maintains, so that a
// restored engine behaves exactly like the one that was serialized.
func validateState(cfg ModelConfig, s ConversationState) error {
	if s.RequestCount < 0 {
		return invalid("request_count", -1, "must not be negative, got %d", s.RequestCount)
	}

	n := s.RequestCount
	lengths := []struct {
		field  string
		length int
	}{
		{"inputs", len(s.Inputs)},
		{"outputs", len(s.Outputs)},
		{"requests_info", len(s.Requests)},
		{"f_reasons", len(s.FinishReasons)},
	}
	for _, l := range lengths {
		if l.length != n {
			return invalid(l.field, -1, "expected %d entries, got %d", n, l.length)
		}
	}

	if err := validateMessages(cfg, s); err != nil {
		return err
	}

	if n > 0 && (s.InputTokens == nil || s.OutputTokens == nil || s.TotalTokens == nil) {
		return invalid("total_tokens", -1, "token counters must be set after %d requests", n)
	}

	if n == 0 && (s.InputTokens != nil || s.OutputTokens != nil || s.TotalTokens != nil) {
		return invalid("total_tokens", -1, "token counters must be unset before the first request")
	}

	for i, detail := range s.Requests {
		if !detail.FinishReason.Valid() {
			return invalid("requests_info", i, "unknown finish code %d", int(detail.FinishReason))
		}
		if s.FinishReasons[i] != detail.FinishReason.Description() {
			return invalid("f_reasons", i, "does not match finish code %d", int(detail.FinishReason))
		}
		if s.Outputs[i] != detail.Output {
			return invalid("outputs", i, "does not match recorded request output")
		}
	}

	for i, a := range s.Archives {
		if len(a.Inputs) != a.RequestCount || len(a.Outputs) != a.RequestCount || len(a.Requests) != a.RequestCount {
			return invalid("sessions", i, "sequence lengths disagree with request_count %d", a.RequestCount)
		}
	}

	return nil
}

func validateMessages(cfg ModelConfig, s ConversationState) error {
	want := 1 + 2*s.RequestCount
	if len(s.Messages) != want {
		return invalid("messages", -1, "expected %d messages for %d requests, got %d", want, s.RequestCount, len(s.Messages))
	}

	if s.Messages[0].Role != core.RoleSystem {
		return invalid("messages", 0, "first message must be system role, got: %s", s.Messages[0].Role)
	}

	if s.Messages[0].Content != cfg.SystemMessage {
		return invalid("messages", 0, "system message does not match configured system message")
	}

	for i := 1; i < len(s.Messages); i++ {
		msg := s.Messages[i]
		turn := (i - 1) / 2

		expected := core.RoleUser
		text := s.Inputs[turn]
		if i%2 == 0 {
			expected = core.RoleAssistant
			text = s.Outputs[turn]
		}

		if msg.Role != expected {
			return invalid("messages", i, "expected %s role, got %s", expected, msg.Role)
		}
		if msg.Content != text {
			return invalid("messages", i, "content does not match recorded %s text", expected)
		}
	}

	return nil
}
