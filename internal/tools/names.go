package tools

// Kind is the closed set of tools the core dispatches. Using an enum instead
// of a string-keyed handler map lets the compiler enforce exhaustiveness in
// the dispatch switch when a tool is added.
type Kind int

const (
	KindUnknown Kind = iota
	KindReadFile
	KindWriteToFile
	KindApplyDiff
	KindInsertContent
	KindExecuteCommand
	KindSearchFiles
	KindListFiles
	KindCodebaseSearch
	KindAskFollowupQuestion
	KindAttemptCompletion
	KindSwitchMode
	KindNewTask
)

// Wire names of the tools as the model emits them.
const (
	ToolNameReadFile            = "read_file"
	ToolNameWriteToFile         = "write_to_file"
	ToolNameApplyDiff           = "apply_diff"
	ToolNameInsertContent       = "insert_content"
	ToolNameExecuteCommand      = "execute_command"
	ToolNameSearchFiles         = "search_files"
	ToolNameListFiles           = "list_files"
	ToolNameCodebaseSearch      = "codebase_search"
	ToolNameAskFollowupQuestion = "ask_followup_question"
	ToolNameAttemptCompletion   = "attempt_completion"
	ToolNameSwitchMode          = "switch_mode"
	ToolNameNewTask             = "new_task"
)

// Name returns the wire name of the tool.
func (k Kind) Name() string {
	switch k {
	case KindReadFile:
		return ToolNameReadFile
	case KindWriteToFile:
		return ToolNameWriteToFile
	case KindApplyDiff:
		return ToolNameApplyDiff
	case KindInsertContent:
		return ToolNameInsertContent
	case KindExecuteCommand:
		return ToolNameExecuteCommand
	case KindSearchFiles:
		return ToolNameSearchFiles
	case KindListFiles:
		return ToolNameListFiles
	case KindCodebaseSearch:
		return ToolNameCodebaseSearch
	case KindAskFollowupQuestion:
		return ToolNameAskFollowupQuestion
	case KindAttemptCompletion:
		return ToolNameAttemptCompletion
	case KindSwitchMode:
		return ToolNameSwitchMode
	case KindNewTask:
		return ToolNameNewTask
	default:
		return "unknown"
	}
}

// KindFromName resolves a wire name to a Kind. Returns false for names the
// catalog does not know; callers turn that into a validation error, never a
// crash.
func KindFromName(name string) (Kind, bool) {
	switch name {
	case ToolNameReadFile:
		return KindReadFile, true
	case ToolNameWriteToFile:
		return KindWriteToFile, true
	case ToolNameApplyDiff:
		return KindApplyDiff, true
	case ToolNameInsertContent:
		return KindInsertContent, true
	case ToolNameExecuteCommand:
		return KindExecuteCommand, true
	case ToolNameSearchFiles:
		return KindSearchFiles, true
	case ToolNameListFiles:
		return KindListFiles, true
	case ToolNameCodebaseSearch:
		return KindCodebaseSearch, true
	case ToolNameAskFollowupQuestion:
		return KindAskFollowupQuestion, true
	case ToolNameAttemptCompletion:
		return KindAttemptCompletion, true
	case ToolNameSwitchMode:
		return KindSwitchMode, true
	case ToolNameNewTask:
		return KindNewTask, true
	default:
		return KindUnknown, false
	}
}

// Group classifies tools for mode gating.
type Group string

const (
	GroupRead    Group = "read"
	GroupEdit    Group = "edit"
	GroupCommand Group = "command"
	GroupBrowser Group = "browser"
	GroupMCP     Group = "mcp"
	// GroupAlways marks tools available in every mode.
	GroupAlways Group = "always"
)

// ParseGroup resolves a group name from configuration.
func ParseGroup(name string) (Group, bool) {
	switch Group(name) {
	case GroupRead, GroupEdit, GroupCommand, GroupBrowser, GroupMCP, GroupAlways:
		return Group(name), true
	default:
		return "", false
	}
}
