package tools

import (
	"fmt"
	"os"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

func (d *Dispatcher) applyDiff(tc *TurnContext, inv *Invocation) *Result {
	abs, denied := d.checkWrite(inv, "path")
	if denied != nil {
		return denied
	}

	raw, _ := inv.StringParam("diff")
	fd, err := diff.ParseFileDiff([]byte(normalizeDiff(raw)))
	if err != nil {
		return ErrorResult(NewValidationError(inv.Name, fmt.Sprintf("malformed unified diff: %v", err)))
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return ErrorResult(NewExecutionError(inv.Name, err))
	}

	updated, err := applyHunks(string(data), fd.Hunks)
	if err != nil {
		return ErrorResult(NewValidationError(inv.Name, err.Error()))
	}

	rel, _ := inv.StringParam("path")
	return d.stageWrite(tc, inv, abs, rel, updated)
}

// normalizeDiff prepends file headers when the model sent bare hunks, which
// the unified-diff parser requires.
func normalizeDiff(raw string) string {
	trimmed := strings.TrimLeft(raw, "\n")
	if strings.HasPrefix(trimmed, "---") || strings.HasPrefix(trimmed, "diff ") {
		return raw
	}
	return "--- a\n+++ b\n" + trimmed
}

// applyHunks applies parsed hunks to content, verifying that every context
// and deletion line matches the original at the stated position.
func applyHunks(content string, hunks []*diff.Hunk) (string, error) {
	lines := strings.Split(content, "\n")
	var out []string
	cursor := 0 // next original line not yet emitted, 0-based

	for _, h := range hunks {
		start := int(h.OrigStartLine) - 1
		if h.OrigLines == 0 {
			// Pure insertion hunks point at the line after which to insert.
			start = int(h.OrigStartLine)
		}
		if start < cursor || start > len(lines) {
			return "", fmt.Errorf("hunk at line %d does not fit the file", h.OrigStartLine)
		}
		out = append(out, lines[cursor:start]...)
		cursor = start

		for _, body := range strings.Split(strings.TrimSuffix(string(h.Body), "\n"), "\n") {
			if body == "" {
				continue
			}
			op, text := body[0], body[1:]
			switch op {
			case ' ', '-':
				if cursor >= len(lines) || lines[cursor] != text {
					got := "(end of file)"
					if cursor < len(lines) {
						got = lines[cursor]
					}
					return "", fmt.Errorf("hunk mismatch at line %d: expected %q, file has %q",
						cursor+1, text, got)
				}
				if op == ' ' {
					out = append(out, text)
				}
				cursor++
			case '+':
				out = append(out, text)
			case '\\':
				// "\ No newline at end of file" markers carry no content.
			default:
				return "", fmt.Errorf("unexpected diff line %q", body)
			}
		}
	}

	out = append(out, lines[cursor:]...)
	return strings.Join(out, "\n"), nil
}
