package session

import "fmt"

// FinishCode is the normalized reason a completion stopped.
type FinishCode int

const (
	FinishStop FinishCode = iota
	FinishLength
	FinishFunctionCall
	FinishContentFilter
	FinishNull
)

var finishSignals = map[string]FinishCode{
	"stop":           FinishStop,
	"length":         FinishLength,
	"function_call":  FinishFunctionCall,
	"content_filter": FinishContentFilter,
	"null":           FinishNull,
}

var finishDescriptions = [...]string{
	FinishStop:          "Success,Complete Message",
	FinishLength:        `Token Limit or parameter "max_token" exceeded,Incomplete Message`,
	FinishFunctionCall:  "The model decided to call a function,Incomplete Message",
	FinishContentFilter: "Content flagged and stopped by model's content filter,Incomplete Message",
	FinishNull:          "API Response is still in progress,Incomplete Message",
}

// ClassifyFinish maps the finish signal reported by the service to its code.
// A nil signal (JSON null) is accepted and treated like the literal "null",
// so a reply without a finish reason is recorded as incomplete instead of
// failing the request. Any other unrecognised signal is an error.
func ClassifyFinish(signal *string) (FinishCode, error) {
	if signal == nil {
		return FinishNull, nil
	}

	code, ok := finishSignals[*signal]
	if !ok {
		return 0, NewError(KindUnknownFinishReason, "received unexpected finish reason: %q", *signal)
	}
	return code, nil
}

func (c FinishCode) Valid() bool {
	return c >= FinishStop && c <= FinishNull
}

// Description is the human readable text recorded for c.
func (c FinishCode) Description() string {
	if !c.Valid() {
		return fmt.Sprintf("finish code %d", int(c))
	}
	return finishDescriptions[c]
}

// Complete reports whether the answer was delivered in full.
func (c FinishCode) Complete() bool {
	return c == FinishStop
}
