// Package approval defines the gate a tool invocation must pass before it is
// allowed to produce side effects. The gate itself never judges what needs
// approval; the caller supplies the policy verdict (always-safe, protected)
// and the gate only carries out the interaction.
package approval

import "context"

// Request carries the human-readable preview of a pending invocation.
type Request struct {
	// ToolName is the wire name of the tool asking for approval.
	ToolName string
	// Preview is a structured, display-ready description of the effect,
	// serialized by the executor (typically JSON).
	Preview string
	// Images are optional binary attachments for the preview.
	Images [][]byte
	// Protected marks operations that must never be auto-approved,
	// e.g. deleting a file or pushing to a remote.
	Protected bool
}

// Response is the user's verdict.
type Response struct {
	Approved bool
	// Feedback is optional text the user attached to the decision; it is
	// surfaced to the model alongside the denial or approval.
	Feedback string
	// FeedbackImages are optional binary attachments to the feedback.
	FeedbackImages [][]byte
}

// Gate suspends the turn until a decision is available.
type Gate interface {
	RequestApproval(ctx context.Context, req Request) (Response, error)
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(ctx context.Context, req Request) (Response, error)

// RequestApproval implements Gate.
func (f GateFunc) RequestApproval(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// AutoGate approves everything except protected operations, which it refers
// to an interactive fallback. This is the "yolo" configuration: unattended,
// but destructive operations still require a human.
type AutoGate struct {
	// Fallback handles protected requests. When nil, protected requests
	// are denied outright rather than silently approved.
	Fallback Gate
}

// RequestApproval implements Gate.
func (g *AutoGate) RequestApproval(ctx context.Context, req Request) (Response, error) {
	if !req.Protected {
		return Response{Approved: true}, nil
	}
	if g.Fallback == nil {
		return Response{
			Approved: false,
			Feedback: "protected operation requires interactive approval",
		}, nil
	}
	return g.Fallback.RequestApproval(ctx, req)
}

// DenyAll is a gate that rejects every request; useful for read-only hosts
// and as a test double.
type DenyAll struct{}

// RequestApproval implements Gate.
func (DenyAll) RequestApproval(context.Context, Request) (Response, error) {
	return Response{Approved: false}, nil
}
