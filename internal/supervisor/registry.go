// registry.go holds the name to command mapping built from Configure messages.
package supervisor

import (
	"fmt"
	"sync"
)

// Entry is one configured game.
type Entry struct {
	Name    string
	Command string
}

// Registry is an insertion-ordered mapping from game name to command.
// Names are unique: the first configuration of a name wins.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Add inserts name. It returns ErrDuplicateName if the name is already present,
// leaving the existing command untouched.
func (r *Registry) Add(name, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, Entry{Name: name, Command: command})
	return nil
}

// Lookup returns the command configured for name.
func (r *Registry) Lookup(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return "", false
	}
	return r.entries[i].Command, true
}

// Entries returns a copy of the registry in insertion order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of configured games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
