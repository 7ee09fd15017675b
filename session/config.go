package session

import (
	"slices"
	"sync"
)

// Param is a single named session parameter.
type Param struct {
	Name  string
	Value Value
}

// Params is an unordered set of overrides applied with Config.Merge.
type Params map[string]Value

// ParamsOf converts a map of Go scalars into Params.
func ParamsOf(m map[string]any) (Params, error) {
	params := make(Params, len(m))
	for name, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, err
		}
		params[name] = v
	}
	return params, nil
}

// Config is the live set of session overrides owned by a client.
// Parameter names keep the order of their first write.
// Safe for concurrent use; every Set and Merge is applied atomically.
type Config struct {
	mu     sync.RWMutex
	names  []string
	values map[string]Value
}

// NewConfig returns an empty Config.
func NewConfig() *Config {
	return &Config{
		values: make(map[string]Value),
	}
}

// Set stores or overwrites one parameter. An invalid (zero) Value is
// ignored and leaves any earlier value in place.
// Returns the config for chaining.
func (c *Config) Set(name string, value Value) *Config {
	if !value.IsValid() {
		return c
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(name, value)
	return c
}

// Merge applies every entry of params under a single lock.
// Existing names are overwritten in place, new names are appended in sorted
// order, and names not in params are left unchanged. Entries with an
// invalid Value are skipped.
func (c *Config) Merge(params Params) *Config {
	names := make([]string, 0, len(params))
	for name, v := range params {
		if v.IsValid() {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return c
	}
	slices.Sort(names)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range names {
		c.setLocked(name, params[name])
	}
	return c
}

func (c *Config) setLocked(name string, value Value) {
	if _, ok := c.values[name]; !ok {
		c.names = append(c.names, name)
	}
	c.values[name] = value
}

// Get returns the current value of a parameter.
func (c *Config) Get(name string) (Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[name]
	return v, ok
}

// Len returns the number of parameters set.
func (c *Config) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.names)
}

// Snapshot returns an immutable copy of the current parameters.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	params := make([]Param, len(c.names))
	for i, name := range c.names {
		params[i] = Param{Name: name, Value: c.values[name]}
	}
	return Snapshot{params: params}
}
