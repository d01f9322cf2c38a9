// Package task drives one agentic task: it receives model turns from the
// host, resolves the tool call each turn carries, validates it against the
// active mode, runs it through the approval-gated dispatcher and reconciles
// the outcome back into the transcript. One Loop per task; sub-agents get
// their own Loop with isolated state.
package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/codefionn/agentloop/internal/approval"
	"github.com/codefionn/agentloop/internal/config"
	"github.com/codefionn/agentloop/internal/features"
	"github.com/codefionn/agentloop/internal/logger"
	"github.com/codefionn/agentloop/internal/mode"
	"github.com/codefionn/agentloop/internal/protocol"
	"github.com/codefionn/agentloop/internal/tools"
	"github.com/codefionn/agentloop/internal/transcript"
)

// State is the loop's position in its turn cycle.
type State int

const (
	StateAwaitingModelTurn State = iota
	StateParsingInvocation
	StateValidatingInvocation
	StateAwaitingApproval
	StateExecuting
	StateReconcilingTranscript
	StateCompleted
	StateAborted
	StateMistakeLimitReached
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateAwaitingModelTurn:
		return "awaiting_model_turn"
	case StateParsingInvocation:
		return "parsing_invocation"
	case StateValidatingInvocation:
		return "validating_invocation"
	case StateAwaitingApproval:
		return "awaiting_approval"
	case StateExecuting:
		return "executing"
	case StateReconcilingTranscript:
		return "reconciling_transcript"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateMistakeLimitReached:
		return "mistake_limit_reached"
	default:
		return "unknown"
	}
}

// Terminal reports whether the loop has finished.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateAborted, StateMistakeLimitReached:
		return true
	}
	return false
}

// Turn is one complete model response as delivered by the host's provider
// layer: free text, plus the structured tool call when the transport lexed
// one natively.
type Turn struct {
	Text   string
	Native *protocol.NativeCall
}

// Status is what the host learns after each turn.
type Status struct {
	State State
	// Result is the reconciled tool outcome of this turn, nil when the turn
	// carried no tool call.
	Result *tools.Result
	// ContextTokens is the transcript's token footprint after reconciliation.
	ContextTokens int
}

// Options wires a Loop. Catalog, Modes and Dispatcher are shared read-only
// across tasks; everything per-task is created inside NewLoop.
type Options struct {
	// ID identifies the task; generated when empty.
	ID       string
	Settings config.Settings
	Policy   config.ApprovalPolicy

	Catalog    *tools.Catalog
	Modes      *mode.Registry
	Dispatcher *tools.Dispatcher
	Gate       approval.Gate
	Log        *logger.Logger

	// Transcript seeds the history on resume; nil starts a fresh task.
	Transcript *transcript.Transcript

	// Spawner is the host hook that runs a child task. Nil hosts get the
	// spawn request surfaced in the result only.
	Spawner func(child *Loop, message string) error

	// Progress receives streaming previews. May be nil.
	Progress func(text string)

	// HandleError surfaces internal failures without failing the turn.
	HandleError func(where string, err error)
}

// ErrTaskFinished is returned when a turn arrives after the loop has reached
// a terminal state.
var ErrTaskFinished = errors.New("task already finished")

// Loop is the per-task state machine. All fields are single-writer: only the
// goroutine driving HandleModelTurn for this task touches them, so no lock is
// needed. Counters are exposed read-only through accessors; executors request
// changes by returning results, never by reaching in.
type Loop struct {
	id   string
	opts Options

	settings config.Settings
	flags    *features.FeatureFlags

	state  State
	proto  protocol.Protocol
	locked bool

	parser     *protocol.XMLParser
	transcript *transcript.Transcript
	counter    *TokenCounter

	mistakes      int
	didRejectTool bool
	didEditFile   bool
	toolUsage     map[string]int

	log *logger.Logger
}

// NewLoop builds the state machine for one task. A resumed transcript locks
// the protocol immediately from history; a fresh task locks on its first
// executed tool call.
func NewLoop(opts Options) *Loop {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	tr := opts.Transcript
	if tr == nil {
		tr = transcript.New()
	}

	flags := features.NewFeatureFlags()
	flags.SetExperiments(opts.Settings.Experiments)

	l := &Loop{
		id:         id,
		opts:       opts,
		settings:   opts.Settings,
		flags:      flags,
		state:      StateAwaitingModelTurn,
		parser:     protocol.NewXMLParser(opts.Catalog),
		transcript: tr,
		toolUsage:  make(map[string]int),
		log:        log.WithPrefix("task " + shortID(id)),
	}

	if detected := protocol.DetectFromHistory(tr.Messages()); detected != protocol.None {
		l.lockProtocol(detected)
	}
	return l
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ID returns the task id.
func (l *Loop) ID() string { return l.id }

// State returns the loop's current state.
func (l *Loop) State() State { return l.state }

// Protocol returns the resolved wire format, applying lock precedence over
// the current settings snapshot.
func (l *Loop) Protocol() protocol.Protocol {
	locked := protocol.None
	if l.locked {
		locked = l.proto
	}
	return protocol.Resolve(&l.settings, locked)
}

// ConsecutiveMistakes returns the current mistake counter.
func (l *Loop) ConsecutiveMistakes() int { return l.mistakes }

// DidRejectTool reports whether the user denied a tool in the most recent
// turn. The flag is sticky for that turn only and clears when the next one
// starts.
func (l *Loop) DidRejectTool() bool { return l.didRejectTool }

// DidEditFile reports whether any tool modified file content this task.
func (l *Loop) DidEditFile() bool { return l.didEditFile }

// ToolUsage returns how often each tool ran successfully this task. The
// returned map is a copy.
func (l *Loop) ToolUsage() map[string]int {
	out := make(map[string]int, len(l.toolUsage))
	for name, n := range l.toolUsage {
		out[name] = n
	}
	return out
}

// Transcript exposes the task's history for host persistence.
func (l *Loop) Transcript() *transcript.Transcript { return l.transcript }

// UpdateSettings installs the host's fresh per-turn snapshot. The protocol
// lock survives any settings change.
func (l *Loop) UpdateSettings(s config.Settings) {
	l.settings = s
	l.flags.SetExperiments(s.Experiments)
}

func (l *Loop) lockProtocol(p protocol.Protocol) {
	if l.locked {
		return
	}
	l.proto = p
	l.locked = true
	l.log.Debug("protocol locked: %s", p)
}

// Abort moves the loop to its aborted terminal state. In-flight executions
// observe the context the host cancelled alongside this call and revert their
// staged edits before the dispatcher returns.
func (l *Loop) Abort() {
	if l.state.Terminal() {
		return
	}
	l.state = StateAborted
	l.log.Info("task aborted")
}

// ObserveChunk feeds a streaming text fragment for live preview. Partial
// parses never execute anything; genuinely malformed text is ignored here and
// diagnosed when the complete turn arrives.
func (l *Loop) ObserveChunk(pending string) {
	if l.state.Terminal() {
		return
	}
	if l.locked && l.proto != protocol.XML {
		return
	}
	inv, err := l.parser.Parse(pending, true)
	if inv != nil && (err == nil || errors.Is(err, protocol.ErrNeedMoreInput)) {
		tc := l.turnContext(context.Background())
		l.opts.Dispatcher.HandlePartial(tc, inv)
	}
}

// HandleModelTurn runs one complete turn through the state machine:
// parse, validate, approve, execute, reconcile. Every outcome, success or
// failure, lands in the transcript; the returned status tells the host
// whether to request another model turn.
func (l *Loop) HandleModelTurn(ctx context.Context, turn Turn) (Status, error) {
	if l.state.Terminal() {
		return Status{State: l.state}, ErrTaskFinished
	}
	if err := ctx.Err(); err != nil {
		l.state = StateAborted
		return Status{State: l.state}, err
	}

	l.didRejectTool = false
	l.state = StateParsingInvocation
	inv, perr := l.parseTurn(turn)
	l.appendAssistantTurn(turn, inv)

	if perr != nil {
		return l.reconcile(inv, tools.ErrorResult(perr)), nil
	}
	if inv == nil {
		// A turn with no tool call stalls the task; remind the model and
		// count it like a validation failure.
		return l.reconcile(nil, tools.ErrorResult(tools.NewValidationError("",
			"you did not use a tool in your previous response. Retry with a tool call."))), nil
	}

	l.state = StateValidatingInvocation
	if verr := l.validateAgainstMode(inv); verr != nil {
		return l.reconcile(inv, tools.ErrorResult(verr)), nil
	}

	l.state = StateExecuting
	result := l.opts.Dispatcher.Dispatch(l.turnContext(ctx), inv)
	if result == nil {
		result = tools.ErrorResult(tools.NewExecutionError(inv.Name,
			fmt.Errorf("tool produced no result")))
	}

	// The first executed call fixes the wire format for the task lifetime.
	l.lockProtocol(invProtocol(inv))

	if err := ctx.Err(); err != nil {
		l.appendResult(inv, result)
		l.state = StateAborted
		return Status{State: l.state, Result: result}, err
	}
	return l.reconcile(inv, result), nil
}

func invProtocol(inv *tools.Invocation) protocol.Protocol {
	if inv.CallID != "" {
		return protocol.Native
	}
	return protocol.XML
}

// parseTurn extracts the turn's tool invocation under the active protocol.
func (l *Loop) parseTurn(turn Turn) (*tools.Invocation, *tools.ToolError) {
	proto := l.Protocol()

	if turn.Native != nil {
		if proto == protocol.XML {
			return nil, tools.NewParseError(turn.Native.Name,
				"this task uses the XML tool syntax; structured tool calls are not accepted")
		}
		return protocol.ValidateNative(l.opts.Catalog, *turn.Native)
	}

	if proto == protocol.Native && !l.locked {
		// Native default without a native call: fall through to XML scanning
		// so a model that emits tags anyway still gets a diagnostic or a
		// working call instead of silence.
		proto = protocol.XML
	}
	if proto != protocol.XML {
		return nil, nil
	}

	inv, err := l.parser.Parse(turn.Text, false)
	if err != nil {
		var terr *tools.ToolError
		if errors.As(err, &terr) {
			return inv, terr
		}
		name := ""
		if inv != nil {
			name = inv.Name
		}
		return inv, tools.NewParseError(name, err.Error())
	}
	return inv, nil
}

// validateAgainstMode checks the invocation against the catalog and the
// active mode's allowed tool set.
func (l *Loop) validateAgainstMode(inv *tools.Invocation) *tools.ToolError {
	if inv.Kind == tools.KindUnknown {
		return tools.NewParseError(inv.Name, fmt.Sprintf("unknown tool %q", inv.Name))
	}

	m, known := l.opts.Modes.Get(l.settings.Mode)
	if !known {
		l.log.Warn("unknown mode %q, using %q", l.settings.Mode, m.Slug)
	}
	allowed := mode.ResolveAllowedTools(m, l.opts.Catalog, l.capabilities())
	if _, ok := allowed[inv.Kind]; !ok {
		return tools.NewNotAllowedError(inv.Name, m.Slug)
	}
	return nil
}

func (l *Loop) capabilities() tools.Capabilities {
	return tools.Capabilities{
		SupportsImages:     l.settings.SupportsImages,
		CodebaseIndexReady: l.settings.CodebaseIndexReady,
		DiffEnabled:        l.settings.DiffEnabled,
		Flags:              l.flags,
	}
}

func (l *Loop) turnContext(ctx context.Context) *tools.TurnContext {
	alwaysSafe := make(map[string]bool, len(l.opts.Policy.AlwaysSafe))
	for _, name := range l.opts.Policy.AlwaysSafe {
		alwaysSafe[name] = true
	}
	protected := make(map[string]bool, len(l.opts.Policy.Protected))
	for _, name := range l.opts.Policy.Protected {
		protected[name] = true
	}
	return &tools.TurnContext{
		Ctx:         ctx,
		Gate:        l.wrapGate(l.opts.Gate),
		Log:         l.log,
		YoloMode:    l.settings.YoloMode,
		AlwaysSafe:  alwaysSafe,
		Protected:   protected,
		Progress:    l.opts.Progress,
		Usage:       func(toolName string) { l.toolUsage[toolName]++ },
		HandleError: l.opts.HandleError,
	}
}

// wrapGate makes the approval suspension observable as its own state. The
// dispatcher runs on the loop's goroutine, so flipping the state around the
// gate call stays single-writer.
func (l *Loop) wrapGate(gate approval.Gate) approval.Gate {
	if gate == nil {
		return nil
	}
	return approval.GateFunc(func(ctx context.Context, req approval.Request) (approval.Response, error) {
		prev := l.state
		l.state = StateAwaitingApproval
		resp, err := gate.RequestApproval(ctx, req)
		l.state = prev
		return resp, err
	})
}

// appendAssistantTurn records the model's output, preserving call-id
// presence verbatim so protocol re-derivation on resume keeps working.
func (l *Loop) appendAssistantTurn(turn Turn, inv *tools.Invocation) {
	msg := transcript.Message{Role: transcript.RoleAssistant}
	if turn.Text != "" {
		msg.Blocks = append(msg.Blocks, transcript.Block{
			Type: transcript.BlockText,
			Text: turn.Text,
		})
	}
	if inv != nil {
		msg.Blocks = append(msg.Blocks, transcript.Block{
			Type:      transcript.BlockToolCall,
			CallID:    inv.CallID,
			ToolName:  inv.Name,
			Arguments: inv.Params,
		})
	} else if turn.Native != nil {
		msg.Blocks = append(msg.Blocks, transcript.Block{
			Type:      transcript.BlockToolCall,
			CallID:    turn.Native.ID,
			ToolName:  turn.Native.Name,
			Arguments: turn.Native.Arguments,
		})
	}
	if len(msg.Blocks) > 0 {
		l.transcript.Append(msg)
	}
}

func (l *Loop) appendResult(inv *tools.Invocation, result *tools.Result) {
	callID := ""
	if inv != nil {
		callID = inv.CallID
	}
	l.transcript.AppendToolResult(callID, result.Text, result.IsError())
}

// reconcile applies the turn's outcome to the transcript and the task
// counters, then decides the next state.
func (l *Loop) reconcile(inv *tools.Invocation, result *tools.Result) Status {
	l.state = StateReconcilingTranscript
	l.appendResult(inv, result)

	switch {
	case result.Err == nil:
		l.mistakes = 0
	case result.Err.Kind == tools.ErrKindApprovalDenied:
		// A user denial is a choice, never a model mistake.
		l.didRejectTool = true
	case result.Err.Kind.CountsAsMistake():
		l.mistakes++
	}
	if result.DidEdit {
		l.didEditFile = true
	}

	if result.SwitchToMode != "" {
		l.applyModeSwitch(result)
	}
	if result.Spawn != nil {
		l.spawn(result)
	}

	status := Status{Result: result, ContextTokens: l.countTokens()}
	switch {
	case result.Completed:
		l.state = StateCompleted
	case l.mistakes >= l.settings.EffectiveMistakeLimit():
		l.log.Warn("mistake limit reached after %d consecutive failures", l.mistakes)
		l.state = StateMistakeLimitReached
	default:
		l.state = StateAwaitingModelTurn
	}
	status.State = l.state
	return status
}

// applyModeSwitch validates the requested slug before changing the active
// mode for subsequent turns.
func (l *Loop) applyModeSwitch(result *tools.Result) {
	if _, known := l.opts.Modes.Get(result.SwitchToMode); !known {
		result.Err = tools.NewValidationError(tools.ToolNameSwitchMode,
			fmt.Sprintf("unknown mode %q", result.SwitchToMode))
		result.Text = result.Err.Error()
		result.SwitchToMode = ""
		l.mistakes++
		return
	}
	l.log.Info("switching mode to %q", result.SwitchToMode)
	l.settings.Mode = result.SwitchToMode
}

// spawn hands a sub-task to the host. The child gets its own transcript,
// counters and protocol lock; only the collaborators are shared.
func (l *Loop) spawn(result *tools.Result) {
	if l.opts.Spawner == nil {
		return
	}
	childSettings := l.settings
	if result.Spawn.Mode != "" {
		childSettings.Mode = result.Spawn.Mode
	}
	child := NewLoop(Options{
		Settings:    childSettings,
		Policy:      l.opts.Policy,
		Catalog:     l.opts.Catalog,
		Modes:       l.opts.Modes,
		Dispatcher:  l.opts.Dispatcher,
		Gate:        l.opts.Gate,
		Log:         l.opts.Log,
		Spawner:     l.opts.Spawner,
		Progress:    l.opts.Progress,
		HandleError: l.opts.HandleError,
	})
	child.transcript.AppendText(transcript.RoleUser, result.Spawn.Message)

	if err := l.opts.Spawner(child, result.Spawn.Message); err != nil {
		l.log.Error("sub-task failed: %v", err)
		result.Text = fmt.Sprintf("%s\nSub-task failed: %v", result.Text, err)
	}
}

func (l *Loop) countTokens() int {
	if l.counter == nil {
		counter, err := NewTokenCounter()
		if err != nil {
			l.log.Warn("token counter unavailable: %v", err)
			l.counter = estimatingCounter()
		} else {
			l.counter = counter
		}
	}
	return l.counter.CountTranscript(l.transcript)
}
