// Package workspace confines tool side effects to the task's working tree.
// Every path a tool touches is resolved against the workspace root and
// checked against ignore rules before any effect happens.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Guard validates paths for a single workspace root. Read-only after
// construction and safe to share across tasks.
type Guard struct {
	root        string
	ignoreRules []string
	// writeProtected are workspace-relative globs that may be read but
	// never written (e.g. the host's own config files).
	writeProtected []string
}

// NewGuard creates a Guard for the given root directory. Rules use
// gitignore-style globs with ** support.
func NewGuard(root string, ignoreRules, writeProtected []string) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	return &Guard{
		root:           abs,
		ignoreRules:    append([]string(nil), ignoreRules...),
		writeProtected: append([]string(nil), writeProtected...),
	}, nil
}

// Root returns the absolute workspace root.
func (g *Guard) Root() string { return g.root }

// Resolve turns a model-supplied path into an absolute path inside the
// workspace. Absolute paths outside the root and ".." escapes are rejected.
func (g *Guard) Resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("empty path")
	}

	p := rel
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.root, p)
	}
	p = filepath.Clean(p)

	if p != g.root && !strings.HasPrefix(p, g.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace", rel)
	}
	return p, nil
}

// relOf returns the slash-separated workspace-relative form of an absolute
// path that Resolve already validated.
func (g *Guard) relOf(abs string) string {
	rel, err := filepath.Rel(g.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

// IsIgnored reports whether the (resolved) path matches an ignore rule.
// Directory rules like "secrets/**" cover everything beneath them.
func (g *Guard) IsIgnored(abs string) bool {
	rel := g.relOf(abs)
	for _, rule := range g.ignoreRules {
		if matchRule(rule, rel) {
			return true
		}
	}
	return false
}

// IsWriteProtected reports whether the path may be read but not written.
func (g *Guard) IsWriteProtected(abs string) bool {
	rel := g.relOf(abs)
	for _, rule := range g.writeProtected {
		if matchRule(rule, rel) {
			return true
		}
	}
	return false
}

func matchRule(rule, rel string) bool {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return false
	}
	if ok, err := doublestar.Match(rule, rel); err == nil && ok {
		return true
	}
	// A bare directory rule covers its subtree.
	if !strings.ContainsAny(rule, "*?[") {
		trimmed := strings.TrimSuffix(rule, "/")
		if rel == trimmed || strings.HasPrefix(rel, trimmed+"/") {
			return true
		}
	}
	return false
}

// CheckRead validates a path for reading: inside the workspace and not
// ignored.
func (g *Guard) CheckRead(rel string) (string, error) {
	abs, err := g.Resolve(rel)
	if err != nil {
		return "", err
	}
	if g.IsIgnored(abs) {
		return "", fmt.Errorf("path %q is excluded by ignore rules", rel)
	}
	return abs, nil
}

// CheckWrite validates a path for writing: inside the workspace, not
// ignored, and not write-protected.
func (g *Guard) CheckWrite(rel string) (string, error) {
	abs, err := g.CheckRead(rel)
	if err != nil {
		return "", err
	}
	if g.IsWriteProtected(abs) {
		return "", fmt.Errorf("path %q is write-protected", rel)
	}
	return abs, nil
}

// Snapshot captures a file's content so a staged edit can be reverted when
// the user rejects it or the task is cancelled. Existed=false records that
// the file was absent, in which case revert removes it.
type Snapshot struct {
	Path    string
	Existed bool
	Content []byte
	Mode    os.FileMode
}

// TakeSnapshot records the current state of abs.
func TakeSnapshot(abs string) (*Snapshot, error) {
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return &Snapshot{Path: abs}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", abs, err)
	}
	return &Snapshot{Path: abs, Existed: true, Content: data, Mode: info.Mode()}, nil
}

// Restore puts the file back the way the snapshot recorded it.
func (s *Snapshot) Restore() error {
	if !s.Existed {
		if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove staged file %s: %w", s.Path, err)
		}
		return nil
	}
	mode := s.Mode
	if mode == 0 {
		mode = 0644
	}
	if err := os.WriteFile(s.Path, s.Content, mode.Perm()); err != nil {
		return fmt.Errorf("failed to restore %s: %w", s.Path, err)
	}
	return nil
}
