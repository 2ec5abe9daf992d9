package session

import (
	"errors"
	"fmt"
)

// Kind categorizes engine failures.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindContextExceeded
	KindRequest
	KindResponseParse
	KindUnknownFinishReason
	KindUnsupportedModel
	KindDeserialization
)

var kindNames = map[Kind]string{
	KindConfiguration:       "configuration",
	KindContextExceeded:     "context_exceeded",
	KindRequest:             "request",
	KindResponseParse:       "response_parse",
	KindUnknownFinishReason: "unknown_finish_reason",
	KindUnsupportedModel:    "unsupported_model",
	KindDeserialization:     "deserialization",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String for the named kinds.
func ParseKind(name string) (Kind, bool) {
	for kind, kindName := range kindNames {
		if kindName == name {
			return kind, true
		}
	}
	return 0, false
}

// Error is the single error type the engine returns. Kind says what went wrong,
// the wrapped cause (if any) says why.
type Error struct {
	Kind    Kind
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// NewError builds an Error without a cause.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError tags err with kind, adding message as context. An err that already
// carries a Kind keeps it.
func WrapError(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return &Error{Kind: tagged.Kind, Message: message, wrapped: err}
	}
	return &Error{Kind: kind, Message: message, wrapped: err}
}

// KindOf returns the Kind carried by err, or 0 when err is not an engine error.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return 0
}

func classify(kind Kind) func(error) bool {
	return func(err error) bool {
		return err != nil && KindOf(err) == kind
	}
}

var (
	IsConfiguration       = classify(KindConfiguration)
	IsContextExceeded     = classify(KindContextExceeded)
	IsRequest             = classify(KindRequest)
	IsResponseParse       = classify(KindResponseParse)
	IsUnknownFinishReason = classify(KindUnknownFinishReason)
	IsUnsupportedModel    = classify(KindUnsupportedModel)
	IsDeserialization     = classify(KindDeserialization)
)
