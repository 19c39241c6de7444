// Package facts is the durable record of what forge has installed. It is
// the source of truth for "what is installed", independent of what the
// host's package managers themselves believe.
package facts

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"

	"forge/internal/faults"
)

// ToolFact records one installed tool. The installer name is always one
// that was actually attempted and reported success.
type ToolFact struct {
	Version     string    `toml:"version"`
	Installer   string    `toml:"installer"`
	InstalledAt time.Time `toml:"installed_at"`
	Executables []string  `toml:"executables,omitempty"`
}

// Facts maps tool name to its fact record. A record exists if and only if
// the engine believes the tool is currently installed by forge-managed means.
type Facts struct {
	Tools map[string]ToolFact `toml:"tools"`
}

// Store reads and writes the facts file. Writes are serialized behind a
// mutex; install/update/uninstall are infrequent, human-triggered operations
// so whole-store exclusion is enough.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath resolves the facts file location: $FORGE_HOME/facts.toml when
// the override is set (tests, containers), otherwise the XDG state dir.
func DefaultPath() string {
	if home := os.Getenv("FORGE_HOME"); home != "" {
		return filepath.Join(home, "facts.toml")
	}
	return filepath.Join(xdg.StateHome, "forge", "facts.toml")
}

// Load reads the facts file. A missing file is an empty store; a present
// but unparsable file is ErrStateCorrupt, never a silent reset.
func (s *Store) Load() (Facts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Facts, error) {
	f := Facts{Tools: make(map[string]ToolFact)}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return Facts{}, errors.Wrapf(err, "reading facts file %s", s.path)
	}

	if err := toml.Unmarshal(raw, &f); err != nil {
		return Facts{}, errors.Mark(
			errors.Wrapf(err, "parsing facts file %s", s.path), faults.ErrStateCorrupt)
	}
	if f.Tools == nil {
		f.Tools = make(map[string]ToolFact)
	}
	return f, nil
}

// Save writes the facts file, creating the parent directory on first use.
func (s *Store) Save(f Facts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(f)
}

func (s *Store) saveLocked(f Facts) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrap(err, "creating facts directory")
	}

	out, err := toml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "marshaling facts")
	}
	if err := os.WriteFile(s.path, out, 0644); err != nil {
		return errors.Wrapf(err, "writing facts file %s", s.path)
	}
	return nil
}

// Mutate loads the facts, applies fn, and saves the result under one lock
// acquisition so concurrent per-tool operations cannot interleave writes.
func (s *Store) Mutate(fn func(*Facts)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.loadLocked()
	if err != nil {
		return err
	}
	fn(&f)
	return s.saveLocked(f)
}
