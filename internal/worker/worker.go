// Package worker binds the loop driver to concrete external agent CLIs.
// A worker is a named configuration: the executable, its non-interactive
// flags, and how the prompt is delivered. New agents are added by
// registering a Definition, not by touching the loop.
package worker

import (
	"fmt"
	"sort"
	"sync"
)

// Kind identifies a registered worker
type Kind string

const (
	// KindClaude runs the Claude Code CLI
	KindClaude Kind = "claude"
	// KindCodex runs the Codex CLI
	KindCodex Kind = "codex"
)

// Definition describes how to invoke one worker executable
type Definition struct {
	// Kind is the registry key
	Kind Kind

	// DisplayName is used in progress output and logs
	DisplayName string

	// Executable is the binary resolved on PATH
	Executable string

	// Args are the fixed invocation flags. Every worker runs
	// non-interactively with its side-effect approvals pre-granted; the
	// prompt is delivered on stdin.
	Args []string
}

var (
	registryMu sync.RWMutex
	registry   = map[Kind]Definition{
		KindClaude: {
			Kind:        KindClaude,
			DisplayName: "claude",
			Executable:  "claude",
			Args:        []string{"-p", "--dangerously-skip-permissions"},
		},
		KindCodex: {
			Kind:        KindCodex,
			DisplayName: "codex",
			Executable:  "codex",
			Args:        []string{"exec", "--dangerously-bypass-approvals-and-sandbox", "-"},
		},
	}
)

// Register adds or replaces a worker definition
func Register(def Definition) error {
	if def.Kind == "" {
		return fmt.Errorf("worker kind cannot be empty")
	}
	if def.Executable == "" {
		return fmt.Errorf("worker %q has no executable", def.Kind)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[def.Kind] = def
	return nil
}

// Lookup returns the definition for a kind
func Lookup(kind Kind) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	def, ok := registry[kind]
	return def, ok
}

// Kinds returns the registered worker kinds, sorted
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return kinds
}

// ParseKind validates a user-supplied worker name
func ParseKind(s string) (Kind, error) {
	kind := Kind(s)
	if _, ok := Lookup(kind); !ok {
		return "", fmt.Errorf("unknown worker %q (available: %v)", s, Kinds())
	}
	return kind, nil
}
