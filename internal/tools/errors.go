package tools

import "fmt"

// ErrorKind classifies tool failures. Every kind is recoverable: the loop
// reconciles a transcript-visible result and the model gets another turn.
type ErrorKind int

const (
	// ErrKindMissingParameter means a required field was absent.
	ErrKindMissingParameter ErrorKind = iota
	// ErrKindValidation covers malformed or conflicting parameter values.
	ErrKindValidation
	// ErrKindParse means the tool-call syntax itself was malformed.
	ErrKindParse
	// ErrKindNotAllowed means the tool is not permitted in the active mode.
	ErrKindNotAllowed
	// ErrKindAccessDenied means a path or resource is outside the permitted
	// workspace or matched an ignore rule.
	ErrKindAccessDenied
	// ErrKindApprovalDenied means the user rejected the invocation.
	ErrKindApprovalDenied
	// ErrKindExecution wraps a failure inside an approved tool's effect.
	ErrKindExecution
)

// String returns the taxonomy name for diagnostics.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindMissingParameter:
		return "missing_parameter"
	case ErrKindValidation:
		return "validation"
	case ErrKindParse:
		return "parse"
	case ErrKindNotAllowed:
		return "not_allowed"
	case ErrKindAccessDenied:
		return "access_denied"
	case ErrKindApprovalDenied:
		return "approval_denied"
	case ErrKindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// CountsAsMistake reports whether this failure class increments the task's
// consecutive-mistake counter. Denials by the user (approval, access policy)
// are choices, not model mistakes, and never count.
func (k ErrorKind) CountsAsMistake() bool {
	switch k {
	case ErrKindMissingParameter, ErrKindValidation, ErrKindParse, ErrKindNotAllowed:
		return true
	default:
		return false
	}
}

// ToolError is the structured error every tool failure is converted to before
// it reaches the task loop. Tool executors never let a raw error escape.
type ToolError struct {
	Kind    ErrorKind
	Tool    string
	Param   string
	Message string
	// Wrapped retains the underlying cause for ErrKindExecution.
	Wrapped error
}

func (e *ToolError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s [%s/%s]: %s", e.Kind, e.Tool, e.Param, e.Message)
	}
	if e.Tool != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Tool, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Wrapped }

// NewMissingParamError produces the standardized diagnostic for a required
// parameter the model failed to supply. The text is transcript-visible so the
// model can correct itself next turn.
func NewMissingParamError(toolName, paramName string) *ToolError {
	return &ToolError{
		Kind:  ErrKindMissingParameter,
		Tool:  toolName,
		Param: paramName,
		Message: fmt.Sprintf(
			"missing value for required parameter '%s'. Retry the %s call with the complete parameter set.",
			paramName, toolName),
	}
}

// NewValidationError reports a malformed or conflicting parameter value.
func NewValidationError(toolName, message string) *ToolError {
	return &ToolError{Kind: ErrKindValidation, Tool: toolName, Message: message}
}

// NewParseError reports malformed tool-call syntax. The offending tool name
// is carried when known so the diagnostic does not have to guess.
func NewParseError(toolName, message string) *ToolError {
	return &ToolError{Kind: ErrKindParse, Tool: toolName, Message: message}
}

// NewNotAllowedError reports a tool invoked outside its permitted modes.
func NewNotAllowedError(toolName, modeSlug string) *ToolError {
	return &ToolError{
		Kind:    ErrKindNotAllowed,
		Tool:    toolName,
		Message: fmt.Sprintf("tool %s is not allowed in mode %q", toolName, modeSlug),
	}
}

// NewAccessDeniedError reports a workspace or ignore-rule violation.
func NewAccessDeniedError(toolName, message string) *ToolError {
	return &ToolError{Kind: ErrKindAccessDenied, Tool: toolName, Message: message}
}

// NewApprovalDeniedError records a user rejection, optionally with feedback.
func NewApprovalDeniedError(toolName, feedback string) *ToolError {
	msg := "the user denied this operation"
	if feedback != "" {
		msg += ": " + feedback
	}
	return &ToolError{Kind: ErrKindApprovalDenied, Tool: toolName, Message: msg}
}

// NewExecutionError wraps an internal failure of an approved tool.
func NewExecutionError(toolName string, err error) *ToolError {
	return &ToolError{
		Kind:    ErrKindExecution,
		Tool:    toolName,
		Message: err.Error(),
		Wrapped: err,
	}
}
