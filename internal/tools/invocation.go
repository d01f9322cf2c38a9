package tools

import (
	"fmt"
	"strconv"
	"strings"
)

// Invocation is the transient per-turn value describing one tool call the
// model emitted. Partial is true while the call is still streaming; missing
// fields are not yet an error in that state. The value is discarded once the
// turn's tool has executed or been rejected.
type Invocation struct {
	Kind Kind
	// Name is the wire name as emitted, kept for diagnostics even when the
	// name did not resolve to a known Kind.
	Name string
	// CallID is present for native-protocol calls and empty for XML ones.
	CallID  string
	Params  map[string]interface{}
	Partial bool
}

// StringParam returns a string parameter. Non-string scalars are rendered
// with fmt so numeric payloads from native transports still read cleanly.
func (inv *Invocation) StringParam(name string) (string, bool) {
	v, ok := inv.Params[name]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []string:
		if len(t) == 0 {
			return "", false
		}
		return t[0], true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// IntParam returns an integer parameter, coercing float64 (JSON numbers) and
// numeric strings.
func (inv *Invocation) IntParam(name string) (int, bool) {
	v, ok := inv.Params[name]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// BoolParam returns a boolean parameter, coercing "true"/"false" strings.
func (inv *Invocation) BoolParam(name string) (bool, bool) {
	v, ok := inv.Params[name]
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b, true
		}
	}
	return false, false
}

// StringSliceParam returns an array-valued parameter. A single value is
// promoted to a one-element slice, matching the XML convention of repeated
// sibling tags.
func (inv *Invocation) StringSliceParam(name string) []string {
	v, ok := inv.Params[name]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return out
	case string:
		return []string{t}
	default:
		return []string{fmt.Sprintf("%v", t)}
	}
}

// Result is the transcript-ready outcome of one invocation.
type Result struct {
	// Text is the content pushed back to the transcript for the model.
	Text string
	// Err is set for every failed invocation; Text then carries the
	// human-readable diagnostic.
	Err *ToolError
	// DidEdit marks results that modified file content.
	DidEdit bool
	// Completed marks the attempt_completion result that ends the task.
	Completed bool
	// SwitchToMode requests a mode change for subsequent turns.
	SwitchToMode string
	// Spawn requests a sub-agent task.
	Spawn *SpawnRequest
}

// SpawnRequest asks the host to start a child task.
type SpawnRequest struct {
	Mode    string
	Message string
}

// IsError reports whether the result records a failure.
func (r *Result) IsError() bool { return r.Err != nil }

// ErrorResult builds a Result from a ToolError, using the error text as the
// transcript diagnostic.
func ErrorResult(err *ToolError) *Result {
	return &Result{Text: err.Error(), Err: err}
}
