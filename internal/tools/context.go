package tools

import (
	"context"

	"github.com/codefionn/agentloop/internal/approval"
	"github.com/codefionn/agentloop/internal/logger"
)

// TurnContext bundles the capabilities a tool executor needs for one
// invocation: cancellation, the approval gate, result/error plumbing and
// streaming preview updates. Executors depend on this single bundle instead
// of loose callbacks.
type TurnContext struct {
	Ctx  context.Context
	Gate approval.Gate
	Log  *logger.Logger

	// YoloMode is the caller-supplied verdict that non-protected
	// invocations may skip the interactive gate. The gate never infers it.
	YoloMode bool
	// AlwaysSafe lists tool names whose policy skips approval entirely.
	AlwaysSafe map[string]bool
	// Protected lists tool names whose operations must never be
	// auto-approved.
	Protected map[string]bool

	// Progress receives streaming preview updates for the UI collaborator.
	// May be nil when the host does not render live previews.
	Progress func(text string)

	// Usage records each successful tool run for telemetry. May be nil.
	Usage func(toolName string)

	// HandleError surfaces unexpected internal failures to the host
	// without aborting the turn. May be nil.
	HandleError func(context string, err error)
}

// RequestApproval runs the approval policy for one invocation: always-safe
// tools skip the gate, yolo mode auto-approves non-protected operations, and
// everything else suspends on the interactive gate.
func (tc *TurnContext) RequestApproval(toolName, preview string) (approval.Response, error) {
	if tc.AlwaysSafe[toolName] {
		return approval.Response{Approved: true}, nil
	}

	protected := tc.Protected[toolName]
	if tc.YoloMode && !protected {
		return approval.Response{Approved: true}, nil
	}

	if tc.Gate == nil {
		return approval.Response{Approved: false}, nil
	}
	return tc.Gate.RequestApproval(tc.Ctx, approval.Request{
		ToolName:  toolName,
		Preview:   preview,
		Protected: protected,
	})
}

// ReportUsage records a successful tool run when the host collects telemetry.
func (tc *TurnContext) ReportUsage(toolName string) {
	if tc.Usage != nil {
		tc.Usage(toolName)
	}
}

// ReportProgress forwards a streaming preview update when the host wants one.
func (tc *TurnContext) ReportProgress(text string) {
	if tc.Progress != nil {
		tc.Progress(text)
	}
}

// ReportError surfaces an internal failure without failing the turn.
func (tc *TurnContext) ReportError(where string, err error) {
	if tc.Log != nil {
		tc.Log.Error("%s: %v", where, err)
	}
	if tc.HandleError != nil {
		tc.HandleError(where, err)
	}
}
