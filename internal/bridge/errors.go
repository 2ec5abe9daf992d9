package bridge

import (
	"github.com/erg0nix/chatdesk/internal/session"
)

// Failure is the plain payload a transport returns instead of an error value.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"error"`
}

// SetupFailure hides the cause behind the fixed GUI message; the cause is
// already in the log.
func SetupFailure(err error) Failure {
	return Failure{Kind: kindName(err), Message: SetupFailedMessage}
}

func FailureFrom(err error) Failure {
	return Failure{Kind: kindName(err), Message: err.Error()}
}

func kindName(err error) string {
	kind := session.KindOf(err)
	if kind == 0 {
		return "internal"
	}
	return kind.String()
}
