package tools

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// lineRange is one "start-end" selection from a read_file line_ranges param.
type lineRange struct {
	start, end int
}

func parseLineRange(s string) (lineRange, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return lineRange{}, fmt.Errorf("malformed line range %q, expected start-end", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return lineRange{}, fmt.Errorf("malformed line range %q: %w", s, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return lineRange{}, fmt.Errorf("malformed line range %q: %w", s, err)
	}
	if start < 1 || end < start {
		return lineRange{}, fmt.Errorf("invalid line range %d-%d", start, end)
	}
	return lineRange{start: start, end: end}, nil
}

// readFile reads one or more files. Repeated path tags are a batch: every
// path is validated up front and approval is requested once for all of them.
func (d *Dispatcher) readFile(tc *TurnContext, inv *Invocation) *Result {
	rels := inv.StringSliceParam("path")
	abs := make([]string, len(rels))
	for i, rel := range rels {
		p, err := d.guard.CheckRead(strings.TrimSpace(rel))
		if err != nil {
			return ErrorResult(NewAccessDeniedError(inv.Name, err.Error()))
		}
		abs[i] = p
	}

	var ranges []lineRange
	for _, raw := range inv.StringSliceParam("line_ranges") {
		r, err := parseLineRange(raw)
		if err != nil {
			return ErrorResult(NewValidationError(inv.Name, err.Error()))
		}
		ranges = append(ranges, r)
	}
	if len(ranges) > 0 && len(rels) > 1 {
		return ErrorResult(NewValidationError(inv.Name, "line_ranges requires a single path"))
	}

	if denied := d.requestApproval(tc, inv, "read "+strings.Join(rels, ", ")); denied != nil {
		return denied
	}

	var sb strings.Builder
	for i, p := range abs {
		data, err := os.ReadFile(p)
		if err != nil {
			return ErrorResult(NewExecutionError(inv.Name, err))
		}
		content := string(data)
		if len(ranges) > 0 {
			content = selectLines(content, ranges)
		}
		if len(abs) > 1 {
			fmt.Fprintf(&sb, "=== %s ===\n", rels[i])
		}
		sb.WriteString(content)
		if len(abs) > 1 && !strings.HasSuffix(content, "\n") {
			sb.WriteByte('\n')
		}
		d.log.Debug("read %s (%d bytes)", rels[i], len(data))
	}
	return &Result{Text: sb.String()}
}

// selectLines returns the requested 1-based inclusive ranges, each prefixed
// with its line number so the model can address edits precisely.
func selectLines(content string, ranges []lineRange) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, r := range ranges {
		if i > 0 {
			b.WriteString("\n...\n")
		}
		for n := r.start; n <= r.end && n <= len(lines); n++ {
			fmt.Fprintf(&b, "%d | %s\n", n, lines[n-1])
		}
	}
	return b.String()
}
