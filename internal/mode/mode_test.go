package mode

import (
	"testing"

	"github.com/codefionn/agentloop/internal/config"
	"github.com/codefionn/agentloop/internal/features"
	"github.com/codefionn/agentloop/internal/tools"
)

func caps() tools.Capabilities {
	return tools.Capabilities{
		DiffEnabled:        false,
		CodebaseIndexReady: true,
		Flags:              features.NewFeatureFlags(),
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	r := NewRegistry(nil)

	m, ok := r.Get("no_such_mode")
	if ok {
		t.Error("unknown slug should report ok=false")
	}
	if m == nil || m.Slug != DefaultSlug {
		t.Fatalf("fallback mode = %+v, want %s", m, DefaultSlug)
	}
}

func TestCustomModeOverridesBuiltin(t *testing.T) {
	r := NewRegistry([]config.CustomMode{
		{Slug: "ask", Name: "Locked Ask", Groups: []string{"read"}},
		{Slug: "reviewer", Name: "Reviewer", Groups: []string{"read", "bogus_group"}},
	})

	ask, ok := r.Get("ask")
	if !ok || ask.Name != "Locked Ask" {
		t.Errorf("custom ask not merged: %+v", ask)
	}

	rev, ok := r.Get("reviewer")
	if !ok {
		t.Fatal("custom reviewer mode missing")
	}
	if len(rev.AllowedGroups) != 1 || rev.AllowedGroups[0] != tools.GroupRead {
		t.Errorf("unknown groups should be dropped: %v", rev.AllowedGroups)
	}
}

func TestResolveAllowedToolsModeGating(t *testing.T) {
	r := NewRegistry(nil)
	catalog := tools.NewCatalog()

	ask, _ := r.Get("ask")
	allowed := ResolveAllowedTools(ask, catalog, caps())

	if _, ok := allowed[tools.KindWriteToFile]; ok {
		t.Error("ask mode must not offer write_to_file")
	}
	if _, ok := allowed[tools.KindExecuteCommand]; ok {
		t.Error("ask mode must not offer execute_command")
	}
	if _, ok := allowed[tools.KindReadFile]; !ok {
		t.Error("ask mode should offer read_file")
	}

	// Always-available set is present regardless of mode groups.
	for _, kind := range []tools.Kind{
		tools.KindAskFollowupQuestion, tools.KindAttemptCompletion,
		tools.KindSwitchMode, tools.KindNewTask,
	} {
		if _, ok := allowed[kind]; !ok {
			t.Errorf("ask mode missing always-available tool %s", kind.Name())
		}
	}
}

func TestResolveAllowedToolsEditExclusivity(t *testing.T) {
	r := NewRegistry(nil)
	catalog := tools.NewCatalog()
	code, _ := r.Get("code")

	c := caps()
	c.DiffEnabled = false
	allowed := ResolveAllowedTools(code, catalog, c)
	if _, ok := allowed[tools.KindWriteToFile]; !ok {
		t.Error("write_to_file should be offered when diff editing is off")
	}
	if _, ok := allowed[tools.KindApplyDiff]; ok {
		t.Error("apply_diff must not be offered when diff editing is off")
	}

	c.DiffEnabled = true
	allowed = ResolveAllowedTools(code, catalog, c)
	if _, ok := allowed[tools.KindApplyDiff]; !ok {
		t.Error("apply_diff should be offered when diff editing is on")
	}
	if _, ok := allowed[tools.KindWriteToFile]; ok {
		t.Error("write_to_file must not be offered when diff editing is on")
	}
}

func TestResolveAllowedToolsAvailabilityPredicates(t *testing.T) {
	r := NewRegistry(nil)
	catalog := tools.NewCatalog()
	code, _ := r.Get("code")

	c := caps()
	c.CodebaseIndexReady = false
	allowed := ResolveAllowedTools(code, catalog, c)
	if _, ok := allowed[tools.KindCodebaseSearch]; ok {
		t.Error("codebase_search must be withheld while the index is not ready")
	}

	c = caps()
	c.Flags.DisableTool(tools.ToolNameSearchFiles)
	allowed = ResolveAllowedTools(code, catalog, c)
	if _, ok := allowed[tools.KindSearchFiles]; ok {
		t.Error("disabled tools must be withheld")
	}
}

// Membership iff the group is allowed (or always) and the predicate holds.
func TestResolveAllowedToolsProperty(t *testing.T) {
	r := NewRegistry(nil)
	catalog := tools.NewCatalog()
	c := caps()

	for _, slug := range r.Slugs() {
		m, _ := r.Get(slug)
		allowed := ResolveAllowedTools(m, catalog, c)
		for _, def := range catalog.All() {
			groupOK := m.Allows(def.Group)
			predOK := def.Available == nil || def.Available(c)
			_, present := allowed[def.Kind]
			if present != (groupOK && predOK) {
				t.Errorf("mode %s tool %s: present=%v, groupOK=%v predOK=%v",
					slug, def.Name(), present, groupOK, predOK)
			}
		}
	}
}
