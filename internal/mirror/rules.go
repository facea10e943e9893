package mirror

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Rule relocates one file inside the docs working copy after the wiki copy.
// Paths are forward-slash and relative to the working copy root.
type Rule struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

func (r Rule) String() string { return r.Source + " -> " + r.Destination }

type rulesFile struct {
	Mappings []Rule `yaml:"mappings"`
}

// ParseRules decodes a mapping document, keeping rule order.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mappings: %w", err)
	}
	for i, r := range f.Mappings {
		if err := validateRulePath(r.Source); err != nil {
			return nil, fmt.Errorf("mapping %d source: %w", i, err)
		}
		if err := validateRulePath(r.Destination); err != nil {
			return nil, fmt.Errorf("mapping %d destination: %w", i, err)
		}
	}
	return f.Mappings, nil
}

// LoadRules reads and parses the mapping file at path.
func LoadRules(path string) ([]Rule, error) {
	// #nosec G304 - path comes from trusted configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	return ParseRules(data)
}

// MarshalRules renders rules in the mapping file format.
func MarshalRules(rules []Rule) ([]byte, error) {
	return yaml.Marshal(rulesFile{Mappings: rules})
}

func validateRulePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("empty path")
	}
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return fmt.Errorf("%q must be relative", p)
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%q escapes the working copy", p)
	}
	return nil
}

// Store holds the current rule set and swaps it atomically on reload.
// A Store without a path always holds an empty rule set.
type Store struct {
	path  string
	rules atomic.Pointer[[]Rule]
}

// NewStore loads path once. An empty path yields an empty store.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	empty := []Rule{}
	s.rules.Store(&empty)
	if path == "" {
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore holds rules that never change.
func NewStaticStore(rules []Rule) *Store {
	s := &Store{}
	cp := append([]Rule{}, rules...)
	s.rules.Store(&cp)
	return s
}

func (s *Store) Path() string { return s.path }

// Rules returns a snapshot of the current rules.
func (s *Store) Rules() []Rule {
	return append([]Rule{}, *s.rules.Load()...)
}

// Reload re-reads the mapping file. On error the previous rules stay active.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	rules, err := LoadRules(s.path)
	if err != nil {
		return err
	}
	s.rules.Store(&rules)
	return nil
}
