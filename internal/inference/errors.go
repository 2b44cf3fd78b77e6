package inference

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
)

// TransportError is any failed call: network error, non-2xx status or an undecodable body.
type TransportError struct {
	Backend    string
	StatusCode int // 0 when no response was received
	Snippet    string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Backend)
	b.WriteString(" transport error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Snippet != "" {
		b.WriteString(": ")
		b.WriteString(e.Snippet)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// OverloadError marks the class of transport failure that means the server itself has to
// be restarted: out of memory, a crashed runner, or nothing listening anymore.
type OverloadError struct {
	Transport *TransportError
}

func (e *OverloadError) Error() string {
	return "inference server overloaded: " + e.Transport.Error()
}

func (e *OverloadError) Unwrap() error { return e.Transport }

// IsOverload reports whether err is, or wraps, an *OverloadError.
func IsOverload(err error) bool {
	var o *OverloadError
	return errors.As(err, &o)
}

// IsTransport reports whether err came from the transport (overloads included).
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

var overloadHints = []string{
	"out of memory",
	"oom",
	"cuda error",
	"runner process has terminated",
	"runner process no longer running",
	"llama runner",
	"server busy",
	"server overloaded",
	"model is loading",
}

// Classify wraps a failed call as a *TransportError, or an *OverloadError when the status,
// body or network error indicate the server has fallen over.
func Classify(backend string, status int, body []byte, err error) error {
	te := &TransportError{Backend: backend, StatusCode: status, Snippet: Snippet(string(body)), Err: err}
	if isOverload(status, body, err) {
		return &OverloadError{Transport: te}
	}
	return te
}

func isOverload(status int, body []byte, err error) bool {
	if status == 0 {
		return err != nil && (errors.Is(err, syscall.ECONNREFUSED) ||
			errors.Is(err, syscall.ECONNRESET) ||
			errors.Is(err, io.ErrUnexpectedEOF))
	}
	if status == http.StatusServiceUnavailable {
		return true
	}
	if status >= 500 {
		lower := strings.ToLower(string(body))
		for _, h := range overloadHints {
			if strings.Contains(lower, h) {
				return true
			}
		}
	}
	return false
}

// Snippet flattens and truncates a response body for logs and errors.
func Snippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
