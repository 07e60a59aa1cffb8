package trial

import "fmt"

// ErrorKind classifies what terminated a trial. Every failure is captured
// into the trial's own result, never raised past the runner, so one bad
// trial cannot abort a batch.
type ErrorKind int

const (
	// ErrSecurityConfig: TLS material could not be applied; no network
	// attempt was made.
	ErrSecurityConfig ErrorKind = iota
	// ErrConnectIssue: issuing the connect failed synchronously.
	ErrConnectIssue
	// ErrConnectTimeout: no connect acknowledgement within the window.
	ErrConnectTimeout
	// ErrConnectRejected: the broker answered with a negative
	// acknowledgement code.
	ErrConnectRejected
	// ErrPublishIssue: issuing the publish failed synchronously.
	ErrPublishIssue
	// ErrPublishTimeout: no matching publish acknowledgement in time.
	ErrPublishTimeout
	// ErrUnexpectedDisconnect: the connection dropped outside the
	// teardown grace window.
	ErrUnexpectedDisconnect
	// ErrIncomplete: timestamps are inconsistent with no recorded cause.
	// Indicates an instrumentation gap and is surfaced, never swallowed.
	ErrIncomplete
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSecurityConfig:
		return "security config"
	case ErrConnectIssue:
		return "connect issue"
	case ErrConnectTimeout:
		return "connect timeout"
	case ErrConnectRejected:
		return "connect rejected"
	case ErrPublishIssue:
		return "publish issue"
	case ErrPublishTimeout:
		return "publish ack timeout"
	case ErrUnexpectedDisconnect:
		return "unexpected disconnect"
	case ErrIncomplete:
		return "incomplete run"
	}
	return "unknown"
}

// Error is a classified trial failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
