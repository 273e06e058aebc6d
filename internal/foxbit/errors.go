package foxbit

import (
	"encoding/json"
	"fmt"
)

// HTTPError is returned for 4xx and 5xx responses. Body holds the decoded
// JSON error payload, or the raw text when it is not JSON.
type HTTPError struct {
	StatusCode int
	Body       any
	Raw        []byte
}

func newHTTPError(status int, raw []byte) *HTTPError {
	e := &HTTPError{StatusCode: status, Raw: raw}
	var body any
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Body = body
	} else if len(raw) > 0 {
		e.Body = string(raw)
	}
	return e
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server responded with status %d: %s", e.StatusCode, string(e.Raw))
}

// Message digs the "message" or "error" field out of a JSON error body.
func (e *HTTPError) Message() string {
	m, ok := e.Body.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"message", "error"} {
		if v, ok := m[key].(string); ok {
			return v
		}
	}
	if nested, ok := m["error"].(map[string]any); ok {
		if v, ok := nested["message"].(string); ok {
			return v
		}
	}
	return ""
}

// RequestError wraps transport failures and undecodable responses.
type RequestError struct {
	Method string
	Path   string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request %s %s: %s", e.Method, e.Path, e.Err.Error())
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
