package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]*TargetSchema)
	registryMu sync.RWMutex
)

// Register adds an import kind to the registry.
// Panics if the kind is already registered or the schema is inconsistent;
// schemas are registered from init functions, so this fails at startup.
func Register(schema *TargetSchema) {
	if err := checkSchema(schema); err != nil {
		panic(err.Error())
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[schema.Kind]; exists {
		panic(fmt.Sprintf("import kind already registered: %s", schema.Kind))
	}
	registry[schema.Kind] = schema
}

func checkSchema(s *TargetSchema) error {
	if s.Kind == "" {
		return fmt.Errorf("import kind has no key")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" || seen[f.Name] {
			return fmt.Errorf("%s: empty or duplicate field %q", s.Kind, f.Name)
		}
		seen[f.Name] = true
	}
	for _, f := range s.Fields {
		if f.Derive != nil && seen[f.Derive.Field] {
			return fmt.Errorf("%s: derived field %q collides with a declared field", s.Kind, f.Derive.Field)
		}
	}
	if s.IdentifierField != "" && !seen[s.IdentifierField] {
		return fmt.Errorf("%s: identifier field %q is not declared", s.Kind, s.IdentifierField)
	}
	for _, r := range s.RowRules {
		for _, name := range r.Fields {
			if !seen[name] {
				return fmt.Errorf("%s: row rule names unknown field %q", s.Kind, name)
			}
		}
	}
	return nil
}

// Get returns the schema for an import kind.
// Returns false if not found.
func Get(kind string) (*TargetSchema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[kind]
	return s, ok
}

// Lookup returns the schema for kind or an error wrapping ErrUnknownKind.
func Lookup(kind string) (*TargetSchema, error) {
	s, ok := Get(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return s, nil
}

// All returns all registered schemas sorted by kind.
func All() []*TargetSchema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*TargetSchema, 0, len(registry))
	for _, s := range registry {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})
	return result
}

// Kinds returns all registered kind keys, sorted.
func Kinds() []string {
	all := All()
	kinds := make([]string, len(all))
	for i, s := range all {
		kinds[i] = s.Kind
	}
	return kinds
}

// Clear removes all registered kinds.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*TargetSchema)
}
