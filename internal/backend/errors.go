package backend

import (
	"errors"
	"fmt"
)

// MsgUnknown replaces an empty backend error message.
const MsgUnknown = "Unbekannter Fehler"

var (
	// ErrNetwork covers transport failures, timeouts and non-2xx responses.
	ErrNetwork = errors.New("backend unreachable")
	// ErrDecode is returned when a response body is not the expected JSON.
	ErrDecode = errors.New("malformed backend response")
)

// LogicalError is an ok:false / success:false answer. Message is shown to
// the user verbatim.
type LogicalError struct {
	Action  string
	Message string
}

func (e *LogicalError) Error() string {
	return fmt.Sprintf("backend %s: %s", e.Action, e.Message)
}

// UserMessage extracts the backend message from err, if any.
func UserMessage(err error) (string, bool) {
	var le *LogicalError
	if errors.As(err, &le) {
		return le.Message, true
	}
	return "", false
}
