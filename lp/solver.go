package lp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Options are solver-specific parameters passed through unchanged from configuration.
type Options map[string]any

// Solver solves a Problem. Implementations must not retain p after returning.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p *Problem, opts Options) (*Solution, error)
}

// Factory constructs a Solver.
type Factory func() (Solver, error)

// ErrUnknownSolver is returned by New for names nobody registered.
var ErrUnknownSolver = errors.New("unknown solver")

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name. Registering a name twice panics.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("lp: solver %q registered twice", name))
	}
	registry[name] = f
}

// New constructs the backend registered under name.
func New(name string) (Solver, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q; registered: %s", ErrUnknownSolver, name, strings.Join(Names(), ", "))
	}
	return f()
}

// Names lists registered backends in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy so backends can consume keys without touching the caller's map.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Float reads a numeric option, accepting YAML-decoded ints and numeric strings.
func (o Options) Float(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("option %s: %w", key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("option %s: expected a number, got %T", key, v)
}

// Text reads an option as text.
func (o Options) Text(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	return FormatValue(v)
}

// FormatValue renders an option value the way command-line solvers expect it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	}
	return fmt.Sprint(v)
}

// SortedKeys returns the option names in a stable order.
func (o Options) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
