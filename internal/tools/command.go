package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecRunner runs commands through the system shell. It is the default
// CommandRunner for hosts that allow real command execution.
type ExecRunner struct {
	// Shell overrides the interpreter; defaults to /bin/sh.
	Shell string
}

func (r *ExecRunner) Run(ctx context.Context, command, cwd string) (string, int, error) {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = cwd

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return buf.String(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return buf.String(), -1, err
	}
	return buf.String(), 0, nil
}

func (d *Dispatcher) executeCommand(tc *TurnContext, inv *Invocation) *Result {
	command, _ := inv.StringParam("command")

	cwd := d.guard.Root()
	if rel, ok := inv.StringParam("cwd"); ok && rel != "" {
		abs, denied := d.checkRead(inv, "cwd")
		if denied != nil {
			return denied
		}
		cwd = abs
	}

	if denied := d.requestApproval(tc, inv, "$ "+command); denied != nil {
		return denied
	}

	if d.runner == nil {
		return ErrorResult(NewExecutionError(inv.Name, fmt.Errorf("no command runner configured")))
	}

	ctx := tc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	output, exitCode, err := d.runner.Run(ctx, command, cwd)
	if err != nil {
		return ErrorResult(NewExecutionError(inv.Name, err))
	}

	d.log.Debug("ran %q (exit %d)", command, exitCode)
	text := strings.TrimRight(output, "\n")
	if text == "" {
		text = "(no output)"
	}
	if exitCode != 0 {
		// A failing command is feedback for the model, not a tool failure.
		text = fmt.Sprintf("%s\n\nCommand exited with code %d.", text, exitCode)
	}
	return &Result{Text: text}
}
