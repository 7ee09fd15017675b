package session

import (
	"iter"
	"strings"
)

// Snapshot is a read-only view of session parameters at one point in time.
// The zero Snapshot is empty and ready to use.
type Snapshot struct {
	params []Param
}

// NewSnapshot builds a Snapshot from an ordered parameter list.
// Later duplicates overwrite earlier ones and keep the first position.
// Params with an invalid Value are dropped.
func NewSnapshot(params ...Param) Snapshot {
	cfg := NewConfig()
	for _, p := range params {
		cfg.Set(p.Name, p.Value)
	}
	return cfg.Snapshot()
}

// Len returns the number of parameters.
func (s Snapshot) Len() int { return len(s.params) }

// Get returns the value stored under name.
func (s Snapshot) Get(name string) (Value, bool) {
	for _, p := range s.params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether name is present.
func (s Snapshot) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// All iterates parameters in order.
func (s Snapshot) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, p := range s.params {
			if !yield(p.Name, p.Value) {
				return
			}
		}
	}
}

// Params returns a copy of the ordered parameter list.
func (s Snapshot) Params() []Param {
	out := make([]Param, len(s.params))
	copy(out, s.params)
	return out
}

// Names returns parameter names in order.
func (s Snapshot) Names() []string {
	out := make([]string, len(s.params))
	for i, p := range s.params {
		out[i] = p.Name
	}
	return out
}

// Map returns the parameters as plain Go values.
func (s Snapshot) Map() map[string]any {
	out := make(map[string]any, len(s.params))
	for _, p := range s.params {
		out[p.Name] = p.Value.Interface()
	}
	return out
}

// String renders the snapshot as "name=value, ..." for logs and errors.
func (s Snapshot) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, p := range s.params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name)
		sb.WriteByte('=')
		sb.WriteString(p.Value.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
