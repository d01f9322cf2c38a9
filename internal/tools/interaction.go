package tools

import (
	"fmt"
	"strings"

	"github.com/codefionn/agentloop/internal/approval"
)

// askFollowupQuestion always suspends on the gate regardless of auto-approve
// policy: the whole point of the tool is a human answer, so yolo mode cannot
// skip it. The gate response's feedback text carries the answer.
func (d *Dispatcher) askFollowupQuestion(tc *TurnContext, inv *Invocation) *Result {
	question, _ := inv.StringParam("question")

	preview := question
	if suggestions := inv.StringSliceParam("follow_up"); len(suggestions) > 0 {
		preview = fmt.Sprintf("%s\n\nSuggestions:\n- %s", question, strings.Join(suggestions, "\n- "))
	}

	if tc.Gate == nil {
		return ErrorResult(NewExecutionError(inv.Name, fmt.Errorf("no gate available to relay the question")))
	}
	resp, err := tc.Gate.RequestApproval(tc.Ctx, approval.Request{
		ToolName: inv.Name,
		Preview:  preview,
	})
	if err != nil {
		return ErrorResult(NewExecutionError(inv.Name, err))
	}
	if !resp.Approved {
		return ErrorResult(NewApprovalDeniedError(inv.Name, resp.Feedback))
	}

	answer := resp.Feedback
	if answer == "" {
		answer = "(the user gave no answer)"
	}
	return &Result{Text: fmt.Sprintf("<answer>\n%s\n</answer>", answer)}
}

func (d *Dispatcher) attemptCompletion(tc *TurnContext, inv *Invocation) *Result {
	result, _ := inv.StringParam("result")
	if denied := d.requestApproval(tc, inv, result); denied != nil {
		return denied
	}
	return &Result{Text: result, Completed: true}
}

// switchMode only records the request; the task loop validates the target
// slug against its mode registry and performs the change between turns.
func (d *Dispatcher) switchMode(tc *TurnContext, inv *Invocation) *Result {
	slug, _ := inv.StringParam("mode_slug")
	reason, _ := inv.StringParam("reason")

	preview := fmt.Sprintf("switch to mode %q", slug)
	if reason != "" {
		preview += ": " + reason
	}
	if denied := d.requestApproval(tc, inv, preview); denied != nil {
		return denied
	}
	return &Result{
		Text:         fmt.Sprintf("Switching to mode %q.", slug),
		SwitchToMode: slug,
	}
}

func (d *Dispatcher) newTask(tc *TurnContext, inv *Invocation) *Result {
	message, _ := inv.StringParam("message")
	mode, _ := inv.StringParam("mode")

	preview := fmt.Sprintf("start sub-task: %s", message)
	if mode != "" {
		preview = fmt.Sprintf("start sub-task in mode %q: %s", mode, message)
	}
	if denied := d.requestApproval(tc, inv, preview); denied != nil {
		return denied
	}
	return &Result{
		Text:  "Sub-task created.",
		Spawn: &SpawnRequest{Mode: mode, Message: message},
	}
}

// previewText renders the best available live preview for a still-streaming
// invocation.
func previewText(inv *Invocation) string {
	var sb strings.Builder
	sb.WriteString(inv.Name)
	for _, key := range []string{"path", "command", "question", "query", "mode_slug", "message", "result"} {
		if v, ok := inv.StringParam(key); ok && v != "" {
			fmt.Fprintf(&sb, " %s=%s", key, v)
		}
	}
	sb.WriteString(" ...")
	return sb.String()
}
