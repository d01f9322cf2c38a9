package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	maxSearchMatches = 300
	maxListEntries   = 500
)

func (d *Dispatcher) searchFiles(tc *TurnContext, inv *Invocation) *Result {
	abs, denied := d.checkRead(inv, "path")
	if denied != nil {
		return denied
	}

	pattern, _ := inv.StringParam("regex")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ErrorResult(NewValidationError(inv.Name, fmt.Sprintf("invalid regex: %v", err)))
	}
	filePattern, _ := inv.StringParam("file_pattern")

	rel, _ := inv.StringParam("path")
	if denied := d.requestApproval(tc, inv, fmt.Sprintf("search %s for /%s/", rel, pattern)); denied != nil {
		return denied
	}

	var sb strings.Builder
	matches := 0
	walkErr := filepath.WalkDir(abs, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.guard.IsIgnored(path) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if filePattern != "" {
			if ok, _ := doublestar.Match(filePattern, entry.Name()); !ok {
				return nil
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		display, rerr := filepath.Rel(d.guard.Root(), path)
		if rerr != nil {
			display = path
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				fmt.Fprintf(&sb, "%s:%d: %s\n", filepath.ToSlash(display), i+1, strings.TrimRight(line, "\r"))
				matches++
				if matches >= maxSearchMatches {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return ErrorResult(NewExecutionError(inv.Name, walkErr))
	}

	if matches == 0 {
		return &Result{Text: fmt.Sprintf("No matches for /%s/ in %s.", pattern, rel)}
	}
	text := sb.String()
	if matches >= maxSearchMatches {
		text += fmt.Sprintf("(truncated at %d matches)\n", maxSearchMatches)
	}
	return &Result{Text: text}
}

func (d *Dispatcher) listFiles(tc *TurnContext, inv *Invocation) *Result {
	abs, denied := d.checkRead(inv, "path")
	if denied != nil {
		return denied
	}
	recursive, _ := inv.BoolParam("recursive")

	rel, _ := inv.StringParam("path")
	if denied := d.requestApproval(tc, inv, fmt.Sprintf("list %s", rel)); denied != nil {
		return denied
	}

	var entries []string
	if recursive {
		err := filepath.WalkDir(abs, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if path == abs {
				return nil
			}
			if d.guard.IsIgnored(path) {
				if entry.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			display, rerr := filepath.Rel(abs, path)
			if rerr != nil {
				display = path
			}
			display = filepath.ToSlash(display)
			if entry.IsDir() {
				display += "/"
			}
			entries = append(entries, display)
			if len(entries) >= maxListEntries {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			return ErrorResult(NewExecutionError(inv.Name, err))
		}
	} else {
		dirEntries, err := os.ReadDir(abs)
		if err != nil {
			return ErrorResult(NewExecutionError(inv.Name, err))
		}
		for _, entry := range dirEntries {
			if d.guard.IsIgnored(filepath.Join(abs, entry.Name())) {
				continue
			}
			name := entry.Name()
			if entry.IsDir() {
				name += "/"
			}
			entries = append(entries, name)
		}
	}

	sort.Strings(entries)
	if len(entries) == 0 {
		return &Result{Text: fmt.Sprintf("Directory %s is empty.", rel)}
	}
	text := strings.Join(entries, "\n")
	if len(entries) >= maxListEntries {
		text += fmt.Sprintf("\n(truncated at %d entries)", maxListEntries)
	}
	return &Result{Text: text}
}

func (d *Dispatcher) codebaseSearch(tc *TurnContext, inv *Invocation) *Result {
	query, _ := inv.StringParam("query")

	scope := "."
	if rel, ok := inv.StringParam("path"); ok && rel != "" {
		if _, denied := d.checkRead(inv, "path"); denied != nil {
			return denied
		}
		scope = rel
	}

	if denied := d.requestApproval(tc, inv, fmt.Sprintf("semantic search %q in %s", query, scope)); denied != nil {
		return denied
	}

	if d.index == nil {
		return ErrorResult(NewExecutionError(inv.Name, fmt.Errorf("codebase index is not available")))
	}
	ctx := tc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	text, err := d.index.Search(ctx, query, scope)
	if err != nil {
		return ErrorResult(NewExecutionError(inv.Name, err))
	}
	return &Result{Text: text}
}
