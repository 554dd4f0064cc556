package upstream

import "fmt"

// Error is the uniform failure shape for one upstream call. HTTPCode 0 means
// the upstream never responded (DNS, connect, timeout); any other code means
// the upstream answered and rejected the request.
type Error struct {
	Action   string
	HTTPCode int
	Message  string
	Timeout  bool
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: API Timeout", e.Action)
	}
	if e.HTTPCode == 0 {
		return fmt.Sprintf("%s: upstream unreachable: %s", e.Action, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// IsTransport reports whether the upstream never responded, as opposed to
// responding with a rejection.
func (e *Error) IsTransport() bool {
	return e.HTTPCode == 0
}
