package tools

import (
	"context"
	"strings"

	"github.com/codefionn/agentloop/internal/logger"
	"github.com/codefionn/agentloop/internal/workspace"
)

// CommandRunner executes shell commands for the execute_command tool. The
// terminal itself is a collaborator the core coordinates but does not own.
type CommandRunner interface {
	Run(ctx context.Context, command, cwd string) (output string, exitCode int, err error)
}

// CodebaseSearcher is the semantic-index collaborator behind codebase_search.
type CodebaseSearcher interface {
	Search(ctx context.Context, query, path string) (string, error)
}

// Dispatcher routes validated invocations to the per-tool executors. It
// owns the shared dispatch discipline; the tool bodies own only their
// effect. Constructed once per host, shared across tasks (all fields are
// read-only after construction).
type Dispatcher struct {
	catalog *Catalog
	guard   *workspace.Guard
	runner  CommandRunner
	index   CodebaseSearcher
	log     *logger.Logger
}

// NewDispatcher wires the dispatcher with its collaborators. runner and
// index may be nil when the host does not provide them; the corresponding
// tools then fail with an execution error instead of crashing.
func NewDispatcher(catalog *Catalog, guard *workspace.Guard, runner CommandRunner, index CodebaseSearcher, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Discard()
	}
	return &Dispatcher{
		catalog: catalog,
		guard:   guard,
		runner:  runner,
		index:   index,
		log:     log.WithPrefix("executor"),
	}
}

// Dispatch runs one complete invocation through the uniform discipline:
//
//  1. required parameters present, else a missing-parameter result;
//  2. workspace/ignore validation for every touched path, else access denied;
//  3. approval via the turn context, else a denied result with no effect;
//  4. the effect itself with failures captured as execution results;
//  5. success results record tool-usage telemetry and flow back for
//     transcript reconciliation.
//
// No error ever escapes as a panic or raw error; every outcome is a Result.
func (d *Dispatcher) Dispatch(tc *TurnContext, inv *Invocation) *Result {
	def, ok := d.catalog.Get(inv.Kind)
	if !ok {
		return ErrorResult(NewParseError(inv.Name, "unknown tool"))
	}

	for _, name := range def.RequiredParams() {
		if v, present := inv.Params[name]; !present || v == "" {
			return ErrorResult(NewMissingParamError(inv.Name, name))
		}
	}

	result := d.run(tc, inv)
	if result != nil && result.Err == nil {
		tc.ReportUsage(inv.Name)
	}
	return result
}

func (d *Dispatcher) run(tc *TurnContext, inv *Invocation) *Result {
	switch inv.Kind {
	case KindReadFile:
		return d.readFile(tc, inv)
	case KindWriteToFile:
		return d.writeToFile(tc, inv)
	case KindApplyDiff:
		return d.applyDiff(tc, inv)
	case KindInsertContent:
		return d.insertContent(tc, inv)
	case KindExecuteCommand:
		return d.executeCommand(tc, inv)
	case KindSearchFiles:
		return d.searchFiles(tc, inv)
	case KindListFiles:
		return d.listFiles(tc, inv)
	case KindCodebaseSearch:
		return d.codebaseSearch(tc, inv)
	case KindAskFollowupQuestion:
		return d.askFollowupQuestion(tc, inv)
	case KindAttemptCompletion:
		return d.attemptCompletion(tc, inv)
	case KindSwitchMode:
		return d.switchMode(tc, inv)
	case KindNewTask:
		return d.newTask(tc, inv)
	default:
		return ErrorResult(NewParseError(inv.Name, "unknown tool"))
	}
}

// HandlePartial forwards a streaming update to the UI collaborator. Partial
// invocations never execute; this is preview only.
func (d *Dispatcher) HandlePartial(tc *TurnContext, inv *Invocation) {
	if inv == nil {
		return
	}
	tc.ReportProgress(previewText(inv))
}

// checkRead resolves a read path through the workspace guard, converting
// failures into access-denied results.
func (d *Dispatcher) checkRead(inv *Invocation, param string) (string, *Result) {
	rel, _ := inv.StringParam(param)
	abs, err := d.guard.CheckRead(strings.TrimSpace(rel))
	if err != nil {
		return "", ErrorResult(NewAccessDeniedError(inv.Name, err.Error()))
	}
	return abs, nil
}

// checkWrite is checkRead plus write-protection.
func (d *Dispatcher) checkWrite(inv *Invocation, param string) (string, *Result) {
	rel, _ := inv.StringParam(param)
	abs, err := d.guard.CheckWrite(strings.TrimSpace(rel))
	if err != nil {
		return "", ErrorResult(NewAccessDeniedError(inv.Name, err.Error()))
	}
	return abs, nil
}

// requestApproval runs the gate and converts a denial into the standard
// denied result. A nil result means the invocation may proceed.
func (d *Dispatcher) requestApproval(tc *TurnContext, inv *Invocation, preview string) *Result {
	resp, err := tc.RequestApproval(inv.Name, preview)
	if err != nil {
		return ErrorResult(NewExecutionError(inv.Name, err))
	}
	if !resp.Approved {
		return ErrorResult(NewApprovalDeniedError(inv.Name, resp.Feedback))
	}
	return nil
}
