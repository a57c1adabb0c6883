package upstream

import "encoding/json"

// Kind classifies an upstream failure.
type Kind string

const (
	KindUnsupportedMethod Kind = "unsupported_method"
	KindHTTPStatus        Kind = "http_status"
	KindTransport         Kind = "transport"
	KindUnexpected        Kind = "unexpected"
	// KindPayload is an error object returned inside a 2xx body.
	KindPayload Kind = "payload"
)

// Error is the error-shaped upstream result. Message is what reports display;
// Details keeps the raw response body and is never rendered.
type Error struct {
	Kind       Kind
	Message    string
	Details    string
	StatusCode int
}

func (e *Error) Error() string { return e.Message }

// Result holds exactly one of a success payload or an error.
type Result struct {
	Payload json.RawMessage
	Err     *Error
}

func Success(payload json.RawMessage) Result {
	return Result{Payload: payload}
}

func Failure(kind Kind, message string) Result {
	return Result{Err: &Error{Kind: kind, Message: message}}
}

func (r Result) OK() bool { return r.Err == nil }

// Outcome labels the result for metrics and audit records.
func (r Result) Outcome() string {
	if r.Err == nil {
		return "ok"
	}
	return string(r.Err.Kind)
}
