package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/codefionn/agentloop/internal/workspace"
)

// previewDiff renders a compact line-diff of the proposed change for the
// approval prompt.
func previewDiff(old, updated string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, updated)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffEqual:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	if sb.Len() == 0 {
		return "(no changes)"
	}
	return sb.String()
}

// stageWrite performs the shared approve-then-write sequence for every
// editing tool: snapshot, approval with a rendered diff, write, and a revert
// when the turn was cancelled mid-write.
func (d *Dispatcher) stageWrite(tc *TurnContext, inv *Invocation, abs, rel, updated string) *Result {
	snap, err := workspace.TakeSnapshot(abs)
	if err != nil {
		return ErrorResult(NewExecutionError(inv.Name, err))
	}

	preview := fmt.Sprintf("%s %s\n%s", inv.Name, rel, previewDiff(string(snap.Content), updated))
	if denied := d.requestApproval(tc, inv, preview); denied != nil {
		return denied
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return ErrorResult(NewExecutionError(inv.Name, err))
	}
	mode := os.FileMode(0644)
	if snap.Existed {
		mode = snap.Mode.Perm()
	}
	if err := os.WriteFile(abs, []byte(updated), mode); err != nil {
		return ErrorResult(NewExecutionError(inv.Name, err))
	}

	if tc.Ctx != nil && tc.Ctx.Err() != nil {
		if rerr := snap.Restore(); rerr != nil {
			tc.ReportError("revert on cancel", rerr)
		}
		return ErrorResult(NewExecutionError(inv.Name, tc.Ctx.Err()))
	}

	d.log.Debug("wrote %s (%d bytes)", rel, len(updated))
	return &Result{Text: fmt.Sprintf("File %s saved.", rel), DidEdit: true}
}

func (d *Dispatcher) writeToFile(tc *TurnContext, inv *Invocation) *Result {
	abs, denied := d.checkWrite(inv, "path")
	if denied != nil {
		return denied
	}
	rel, _ := inv.StringParam("path")
	content, _ := inv.StringParam("content")
	return d.stageWrite(tc, inv, abs, rel, content)
}

func (d *Dispatcher) insertContent(tc *TurnContext, inv *Invocation) *Result {
	abs, denied := d.checkWrite(inv, "path")
	if denied != nil {
		return denied
	}

	line, ok := inv.IntParam("line")
	if !ok || line < 0 {
		return ErrorResult(NewValidationError(inv.Name, "line must be a non-negative integer (0 appends)"))
	}
	content, _ := inv.StringParam("content")

	data, err := os.ReadFile(abs)
	if err != nil {
		return ErrorResult(NewExecutionError(inv.Name, err))
	}

	lines := strings.Split(string(data), "\n")
	insert := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	var updated []string
	switch {
	case line == 0:
		// 0 means append after the last line.
		updated = append(lines, insert...)
	case line > len(lines):
		return ErrorResult(NewValidationError(inv.Name,
			fmt.Sprintf("line %d is beyond the end of the file (%d lines)", line, len(lines))))
	default:
		updated = append(updated, lines[:line-1]...)
		updated = append(updated, insert...)
		updated = append(updated, lines[line-1:]...)
	}

	rel, _ := inv.StringParam("path")
	return d.stageWrite(tc, inv, abs, rel, strings.Join(updated, "\n"))
}
