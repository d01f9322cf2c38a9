package tools

import "github.com/codefionn/agentloop/internal/features"

// ParamType is the coarse type of a tool parameter.
type ParamType string

const (
	ParamString     ParamType = "string"
	ParamInteger    ParamType = "integer"
	ParamBoolean    ParamType = "boolean"
	ParamEnum       ParamType = "enum"
	ParamObject     ParamType = "object"
	ParamRangeArray ParamType = "range_array"
)

// ParamSpec describes one named parameter of a tool.
type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
	// EnumValues constrains ParamEnum parameters.
	EnumValues []string
}

// Capabilities is the snapshot of host/provider state the availability
// predicates read. Built once per turn from the settings snapshot.
type Capabilities struct {
	SupportsImages     bool
	CodebaseIndexReady bool
	// DiffEnabled selects apply_diff over write_to_file; the two editing
	// tools are never offered together.
	DiffEnabled bool
	Flags       *features.FeatureFlags
}

func (c Capabilities) toolEnabled(name string) bool {
	if c.Flags == nil {
		return true
	}
	return c.Flags.IsToolEnabled(name)
}

// Definition is the immutable descriptor of one tool. Instances live in the
// catalog for the process lifetime and are shared across tasks by reference.
type Definition struct {
	Kind   Kind
	Group  Group
	Params []ParamSpec
	// Available evaluates whether the tool may be offered given current
	// capabilities. Nil means always available.
	Available func(Capabilities) bool
}

// Name returns the wire name of the defined tool.
func (d *Definition) Name() string { return d.Kind.Name() }

// Param looks up a parameter spec by name.
func (d *Definition) Param(name string) (ParamSpec, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// RequiredParams returns the names of all required parameters in order.
func (d *Definition) RequiredParams() []string {
	var names []string
	for _, p := range d.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// IsAlwaysAvailable reports whether the tool belongs to the always group.
func (d *Definition) IsAlwaysAvailable() bool { return d.Group == GroupAlways }

// Catalog is the static tool registry. It is created once at host startup,
// injected into every task loop, and never mutated afterwards.
type Catalog struct {
	defs map[Kind]*Definition
}

// NewCatalog builds the catalog from the built-in definition table.
func NewCatalog() *Catalog {
	c := &Catalog{defs: make(map[Kind]*Definition)}
	for _, def := range builtinDefinitions() {
		c.defs[def.Kind] = def
	}
	return c
}

// Get returns the definition for a kind.
func (c *Catalog) Get(kind Kind) (*Definition, bool) {
	def, ok := c.defs[kind]
	return def, ok
}

// ByName resolves a wire name to its definition.
func (c *Catalog) ByName(name string) (*Definition, bool) {
	kind, ok := KindFromName(name)
	if !ok {
		return nil, false
	}
	return c.Get(kind)
}

// All returns every definition. The slice is freshly allocated; the
// definitions themselves are shared.
func (c *Catalog) All() []*Definition {
	defs := make([]*Definition, 0, len(c.defs))
	for _, def := range c.defs {
		defs = append(defs, def)
	}
	return defs
}

func builtinDefinitions() []*Definition {
	return []*Definition{
		{
			Kind:  KindReadFile,
			Group: GroupRead,
			Params: []ParamSpec{
				{Name: "path", Type: ParamString, Required: true},
				{Name: "line_ranges", Type: ParamRangeArray},
			},
			Available: func(c Capabilities) bool { return c.toolEnabled(ToolNameReadFile) },
		},
		{
			Kind:  KindWriteToFile,
			Group: GroupEdit,
			Params: []ParamSpec{
				{Name: "path", Type: ParamString, Required: true},
				{Name: "content", Type: ParamString, Required: true},
			},
			// Mutually exclusive with apply_diff: only offered when diff
			// editing is off.
			Available: func(c Capabilities) bool {
				return !c.DiffEnabled && c.toolEnabled(ToolNameWriteToFile)
			},
		},
		{
			Kind:  KindApplyDiff,
			Group: GroupEdit,
			Params: []ParamSpec{
				{Name: "path", Type: ParamString, Required: true},
				{Name: "diff", Type: ParamString, Required: true},
			},
			Available: func(c Capabilities) bool {
				return c.DiffEnabled && c.toolEnabled(ToolNameApplyDiff)
			},
		},
		{
			Kind:  KindInsertContent,
			Group: GroupEdit,
			Params: []ParamSpec{
				{Name: "path", Type: ParamString, Required: true},
				{Name: "line", Type: ParamInteger, Required: true},
				{Name: "content", Type: ParamString, Required: true},
			},
			Available: func(c Capabilities) bool { return c.toolEnabled(ToolNameInsertContent) },
		},
		{
			Kind:  KindExecuteCommand,
			Group: GroupCommand,
			Params: []ParamSpec{
				{Name: "command", Type: ParamString, Required: true},
				{Name: "cwd", Type: ParamString},
			},
			Available: func(c Capabilities) bool { return c.toolEnabled(ToolNameExecuteCommand) },
		},
		{
			Kind:  KindSearchFiles,
			Group: GroupRead,
			Params: []ParamSpec{
				{Name: "path", Type: ParamString, Required: true},
				{Name: "regex", Type: ParamString, Required: true},
				{Name: "file_pattern", Type: ParamString},
			},
			Available: func(c Capabilities) bool { return c.toolEnabled(ToolNameSearchFiles) },
		},
		{
			Kind:  KindListFiles,
			Group: GroupRead,
			Params: []ParamSpec{
				{Name: "path", Type: ParamString, Required: true},
				{Name: "recursive", Type: ParamBoolean},
			},
			Available: func(c Capabilities) bool { return c.toolEnabled(ToolNameListFiles) },
		},
		{
			Kind:  KindCodebaseSearch,
			Group: GroupRead,
			Params: []ParamSpec{
				{Name: "query", Type: ParamString, Required: true},
				{Name: "path", Type: ParamString},
			},
			// Requires the semantic index collaborator to be ready.
			Available: func(c Capabilities) bool { return c.CodebaseIndexReady },
		},
		{
			Kind:  KindAskFollowupQuestion,
			Group: GroupAlways,
			Params: []ParamSpec{
				{Name: "question", Type: ParamString, Required: true},
				{Name: "follow_up", Type: ParamString},
			},
		},
		{
			Kind:  KindAttemptCompletion,
			Group: GroupAlways,
			Params: []ParamSpec{
				{Name: "result", Type: ParamString, Required: true},
			},
		},
		{
			Kind:  KindSwitchMode,
			Group: GroupAlways,
			Params: []ParamSpec{
				{Name: "mode_slug", Type: ParamString, Required: true},
				{Name: "reason", Type: ParamString},
			},
		},
		{
			Kind:  KindNewTask,
			Group: GroupAlways,
			Params: []ParamSpec{
				{Name: "message", Type: ParamString, Required: true},
				{Name: "mode", Type: ParamString},
			},
			Available: func(c Capabilities) bool { return c.toolEnabled(ToolNameNewTask) },
		},
	}
}
