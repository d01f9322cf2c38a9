// Package mode maps named modes ("code", "ask", ...) to the tool groups the
// model may use while that mode is active. Built-in modes are merged with
// user-supplied custom modes at construction; the result is read-only for a
// task's lifetime.
package mode

import (
	"github.com/codefionn/agentloop/internal/config"
	"github.com/codefionn/agentloop/internal/tools"
)

// DefaultSlug is the fallback when an unknown mode is requested.
const DefaultSlug = "code"

// Mode is one named configuration.
type Mode struct {
	Slug string
	Name string
	// RoleDefinition is free text for the system prompt; the core never
	// interprets it.
	RoleDefinition string
	// AllowedGroups is the ordered set of tool groups this mode permits.
	AllowedGroups []tools.Group
}

// Allows reports whether the mode permits the given group. The always group
// is permitted in every mode.
func (m *Mode) Allows(group tools.Group) bool {
	if group == tools.GroupAlways {
		return true
	}
	for _, g := range m.AllowedGroups {
		if g == group {
			return true
		}
	}
	return false
}

// Registry holds the merged mode set. Read-only after construction and
// shared by reference across concurrently running tasks.
type Registry struct {
	modes map[string]*Mode
	order []string
}

// NewRegistry builds the registry from built-in defaults merged with custom
// modes. A custom mode with a built-in slug replaces the built-in.
func NewRegistry(custom []config.CustomMode) *Registry {
	r := &Registry{modes: make(map[string]*Mode)}
	for _, m := range builtinModes() {
		r.put(m)
	}
	for _, c := range custom {
		if c.Slug == "" {
			continue
		}
		r.put(fromCustom(c))
	}
	return r
}

func (r *Registry) put(m *Mode) {
	if _, exists := r.modes[m.Slug]; !exists {
		r.order = append(r.order, m.Slug)
	}
	r.modes[m.Slug] = m
}

func fromCustom(c config.CustomMode) *Mode {
	m := &Mode{
		Slug:           c.Slug,
		Name:           c.Name,
		RoleDefinition: c.RoleDefinition,
	}
	for _, name := range c.Groups {
		if g, ok := tools.ParseGroup(name); ok {
			m.AllowedGroups = append(m.AllowedGroups, g)
		}
	}
	return m
}

// Get returns the mode for a slug, falling back to the default mode when the
// slug is unknown. The second return reports whether the slug matched.
func (r *Registry) Get(slug string) (*Mode, bool) {
	if m, ok := r.modes[slug]; ok {
		return m, true
	}
	return r.modes[DefaultSlug], false
}

// Slugs returns all registered slugs in registration order.
func (r *Registry) Slugs() []string {
	return append([]string(nil), r.order...)
}

// ResolveAllowedTools computes the tool set legal for a mode: the union of
// the mode's groups plus the always-available set, minus any tool whose
// availability predicate rejects the current capabilities.
func ResolveAllowedTools(m *Mode, catalog *tools.Catalog, caps tools.Capabilities) map[tools.Kind]*tools.Definition {
	allowed := make(map[tools.Kind]*tools.Definition)
	for _, def := range catalog.All() {
		if !m.Allows(def.Group) {
			continue
		}
		if def.Available != nil && !def.Available(caps) {
			continue
		}
		allowed[def.Kind] = def
	}
	return allowed
}

func builtinModes() []*Mode {
	return []*Mode{
		{
			Slug:           "code",
			Name:           "Code",
			RoleDefinition: "A skilled software engineer that reads, writes and refactors code.",
			AllowedGroups: []tools.Group{
				tools.GroupRead, tools.GroupEdit, tools.GroupCommand,
				tools.GroupBrowser, tools.GroupMCP,
			},
		},
		{
			Slug:           "ask",
			Name:           "Ask",
			RoleDefinition: "A technical assistant that answers questions without modifying the project.",
			AllowedGroups: []tools.Group{
				tools.GroupRead, tools.GroupBrowser, tools.GroupMCP,
			},
		},
		{
			Slug:           "architect",
			Name:           "Architect",
			RoleDefinition: "A technical leader that plans before implementation.",
			AllowedGroups: []tools.Group{
				tools.GroupRead, tools.GroupBrowser, tools.GroupMCP,
			},
		},
		{
			Slug:           "debug",
			Name:           "Debug",
			RoleDefinition: "A diagnostician that tracks down defects systematically.",
			AllowedGroups: []tools.Group{
				tools.GroupRead, tools.GroupEdit, tools.GroupCommand,
				tools.GroupBrowser, tools.GroupMCP,
			},
		},
	}
}
