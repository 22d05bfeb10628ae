package router

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a dispatch failure. Backend-specific failures are
// translated into this taxonomy at the channel boundary; no backend error
// shape crosses into the router's callers.
type ErrorKind string

// The dispatch error taxonomy.
const (
	// KindValidation: arguments failed the tool's input schema. Local, not
	// retried, names the offending fields.
	KindValidation ErrorKind = "ValidationError"

	// KindUnknownTool: the name matched neither canonical nor alias space.
	// Carries a best-effort catalog suggestion.
	KindUnknownTool ErrorKind = "UnknownTool"

	// KindUnavailable: the bound channel was not Ready (down, mid-reconnect,
	// or pool-exhausted). Surfaced immediately, never silently retried.
	KindUnavailable ErrorKind = "BackendUnavailable"

	// KindTimeout: the deadline expired before resolution. Any late backend
	// response is discarded without touching another request's correlation
	// slot.
	KindTimeout ErrorKind = "TimeoutError"

	// KindProtocol: the backend produced a malformed or absent payload. The
	// raw payload is logged at the channel; callers see a generic message.
	KindProtocol ErrorKind = "ProtocolError"

	// KindPartialFailure: a bulk operation failed for some items. Items
	// carries the per-item status list.
	KindPartialFailure ErrorKind = "PartialFailure"
)

// ItemStatus is one entry of a bulk operation's per-item result list.
type ItemStatus struct {
	Index int    `json:"index"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Error is a structured dispatch failure.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind `json:"kind"`

	// RequestID correlates this failure with the dispatch log entries.
	RequestID string `json:"requestId"`

	// Tool is the name the caller used.
	Tool string `json:"tool"`

	// Message is the caller-facing description.
	Message string `json:"message"`

	// Fields names the offending arguments for KindValidation.
	Fields []string `json:"fields,omitempty"`

	// Suggestion is the catalog's best match for KindUnknownTool.
	Suggestion string `json:"suggestion,omitempty"`

	// Items is the per-item status list for KindPartialFailure.
	Items []ItemStatus `json:"items,omitempty"`

	cause error
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " (fields: %s)", strings.Join(e.Fields, ", "))
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", e.Suggestion)
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }
