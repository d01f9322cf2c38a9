package features

import "sync"

// FeatureFlags manages runtime experiment flags for tools and capabilities.
// This structure is NOT persisted to disk - it's in-memory only.
// Each tool has its own boolean flag with a default value of true (enabled).
type FeatureFlags struct {
	mu sync.RWMutex

	// Tool flags - all default to true (enabled)
	ReadFile       bool
	WriteToFile    bool
	ApplyDiff      bool
	InsertContent  bool
	ExecuteCommand bool
	SearchFiles    bool
	ListFiles      bool
	NewTask        bool

	// Named experiments supplied by the host, e.g. "concurrentFileReads".
	experiments map[string]bool
}

// NewFeatureFlags creates a new FeatureFlags instance with default values (all enabled)
func NewFeatureFlags() *FeatureFlags {
	return &FeatureFlags{
		ReadFile:       true,
		WriteToFile:    true,
		ApplyDiff:      true,
		InsertContent:  true,
		ExecuteCommand: true,
		SearchFiles:    true,
		ListFiles:      true,
		NewTask:        true,
		experiments:    make(map[string]bool),
	}
}

// IsToolEnabled checks if a tool is enabled
func (f *FeatureFlags) IsToolEnabled(toolName string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	switch toolName {
	case "read_file":
		return f.ReadFile
	case "write_to_file":
		return f.WriteToFile
	case "apply_diff":
		return f.ApplyDiff
	case "insert_content":
		return f.InsertContent
	case "execute_command":
		return f.ExecuteCommand
	case "search_files":
		return f.SearchFiles
	case "list_files":
		return f.ListFiles
	case "new_task":
		return f.NewTask
	default:
		// Unknown tools default to enabled
		return true
	}
}

// EnableTool enables a specific tool
func (f *FeatureFlags) EnableTool(toolName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setToolFlag(toolName, true)
}

// DisableTool disables a specific tool
func (f *FeatureFlags) DisableTool(toolName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setToolFlag(toolName, false)
}

// SetExperiment records a named experiment flag from the host settings.
func (f *FeatureFlags) SetExperiment(name string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.experiments[name] = enabled
}

// IsExperimentEnabled reports whether a named experiment is on.
// Unknown experiments default to disabled.
func (f *FeatureFlags) IsExperimentEnabled(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.experiments[name]
}

// SetExperiments replaces the experiment map wholesale, e.g. when the host
// pushes a fresh settings snapshot at turn start.
func (f *FeatureFlags) SetExperiments(experiments map[string]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.experiments = make(map[string]bool, len(experiments))
	for name, enabled := range experiments {
		f.experiments[name] = enabled
	}
}

// setToolFlag sets the tool's flag (must be called with lock held)
func (f *FeatureFlags) setToolFlag(toolName string, enabled bool) {
	switch toolName {
	case "read_file":
		f.ReadFile = enabled
	case "write_to_file":
		f.WriteToFile = enabled
	case "apply_diff":
		f.ApplyDiff = enabled
	case "insert_content":
		f.InsertContent = enabled
	case "execute_command":
		f.ExecuteCommand = enabled
	case "search_files":
		f.SearchFiles = enabled
	case "list_files":
		f.ListFiles = enabled
	case "new_task":
		f.NewTask = enabled
	}
	// Unknown tools are ignored
}
