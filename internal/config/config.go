package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the read-only per-turn snapshot the host supplies to the task
// loop. The loop never mutates it; a fresh snapshot arrives each turn.
type Settings struct {
	// Mode is the slug of the active mode ("code", "ask", ...).
	Mode string `yaml:"mode"`

	// ProviderID identifies the active model provider. A small set of
	// providers cannot carry native tool calls and force the XML protocol.
	ProviderID string `yaml:"provider_id"`

	// Experiments are host-controlled feature gates.
	Experiments map[string]bool `yaml:"experiments"`

	// YoloMode auto-approves non-protected tool invocations.
	YoloMode bool `yaml:"yolo_mode"`

	// DiffEnabled selects the diff-based editing tool; when false the
	// whole-file write tool is offered instead. The two are mutually
	// exclusive in the resolved tool set.
	DiffEnabled bool `yaml:"diff_enabled"`

	// SupportsImages reports whether the active model accepts image blocks.
	SupportsImages bool `yaml:"supports_images"`

	// CodebaseIndexReady reports whether the semantic index collaborator is
	// available; gates the codebase_search tool.
	CodebaseIndexReady bool `yaml:"codebase_index_ready"`

	// MistakeLimit is the consecutive-mistake threshold; 0 means default.
	MistakeLimit int `yaml:"mistake_limit"`
}

// DefaultMistakeLimit is used when Settings.MistakeLimit is zero.
const DefaultMistakeLimit = 3

// EffectiveMistakeLimit resolves the configured threshold.
func (s *Settings) EffectiveMistakeLimit() int {
	if s.MistakeLimit > 0 {
		return s.MistakeLimit
	}
	return DefaultMistakeLimit
}

// CustomMode describes a user-supplied mode merged over the built-ins.
type CustomMode struct {
	Slug           string   `yaml:"slug"`
	Name           string   `yaml:"name"`
	RoleDefinition string   `yaml:"role_definition"`
	Groups         []string `yaml:"groups"`
}

// ApprovalPolicy names the operations the approval layer treats specially.
type ApprovalPolicy struct {
	// AlwaysSafe tools skip the approval gate entirely.
	AlwaysSafe []string `yaml:"always_safe"`
	// Protected operations require interactive approval even in yolo mode.
	Protected []string `yaml:"protected"`
}

// File is the on-disk configuration a host may load at startup.
type File struct {
	LogLevel    string         `yaml:"log_level"`
	LogPath     string         `yaml:"log_path"`
	Settings    Settings       `yaml:"settings"`
	CustomModes []CustomMode   `yaml:"custom_modes"`
	Approval    ApprovalPolicy `yaml:"approval"`
	IgnoreRules []string       `yaml:"ignore_rules"`
}

// Load reads a YAML configuration file. A missing file is not an error; the
// zero File is returned so hosts can run on built-in defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
