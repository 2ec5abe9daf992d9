package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapErrorKeepsExistingKind(t *testing.T) {
	inner := NewError(KindUnknownFinishReason, "bad finish")
	outer := WrapError(fmt.Errorf("process: %w", inner), KindRequest, "error requesting")

	assert.Equal(t, KindUnknownFinishReason, outer.Kind)
	assert.True(t, IsUnknownFinishReason(outer))
	assert.ErrorIs(t, outer, inner)
	assert.Equal(t, "error requesting: process: bad finish", outer.Error())
}

func TestWrapErrorTagsPlainErrors(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(cause, KindResponseParse, "parse usage")

	assert.True(t, IsResponseParse(err))
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, WrapError(nil, KindRequest, "unused"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, KindDeserialization, KindOf(NewError(KindDeserialization, "x")))
	assert.False(t, IsConfiguration(nil))
	assert.Equal(t, "context_exceeded", KindContextExceeded.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}

func TestParseKind(t *testing.T) {
	for kind := KindConfiguration; kind <= KindDeserialization; kind++ {
		parsed, ok := ParseKind(kind.String())
		assert.True(t, ok, kind.String())
		assert.Equal(t, kind, parsed)
	}

	_, ok := ParseKind("kind(42)")
	assert.False(t, ok)
}
