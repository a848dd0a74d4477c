package operator

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Arg is the optional textual argument of a parameterised operator name
// such as bit[2].
type Arg struct {
	Value string
	Valid bool
}

// NoArg is the argument of a bare name.
var NoArg = Arg{}

// SomeArg wraps s as a present argument.
func SomeArg(s string) Arg { return Arg{Value: s, Valid: true} }

func (a Arg) String() string {
	if !a.Valid {
		return ""
	}
	return "[" + a.Value + "]"
}

// Constructor builds an operator from its argument.
type Constructor[T any] func(arg Arg) (T, error)

// ParseKey splits key into a name and an optional argument at the first
// bracket pair: "bit[2]" is ("bit", "2"), "or" is ("or", NoArg).
func ParseKey(key string) (string, Arg) {
	i := strings.IndexByte(key, '[')
	if i < 0 {
		return key, NoArg
	}
	rest := key[i+1:]
	if j := strings.IndexByte(rest, ']'); j >= 0 {
		rest = rest[:j]
	}
	return key[:i], SomeArg(rest)
}

// Registry maps formula-level names of one role (psi, sigma or phi) to
// operator constructors. Plain instances are stored as constructors that
// ignore their argument, so every lookup goes through the same path and a
// registered instance is shared by identity across all references.
type Registry[T any] struct {
	role string

	mu      sync.RWMutex
	entries map[string]Constructor[T]
}

// NewRegistry returns an empty registry for role.
func NewRegistry[T any](role string) *Registry[T] {
	return &Registry[T]{role: role, entries: make(map[string]Constructor[T])}
}

func (r *Registry[T]) Role() string { return r.role }

// Register stores a ready-made operator under name.
func (r *Registry[T]) Register(name string, op T) {
	r.RegisterConstructor(name, func(Arg) (T, error) { return op, nil })
}

// RegisterConstructor stores a constructor invoked on every lookup of name.
func (r *Registry[T]) RegisterConstructor(name string, c Constructor[T]) {
	r.mu.Lock()
	r.entries[name] = c
	r.mu.Unlock()
}

// Add registers v, which must be an operator of the registry's family or a
// constructor of one. Anything else is an InvalidOperatorError.
func (r *Registry[T]) Add(name string, v any) error {
	switch c := v.(type) {
	case nil:
		return &InvalidOperatorError{Role: r.role, Name: name, Value: v}
	case T:
		r.Register(name, c)
	case Constructor[T]:
		r.RegisterConstructor(name, c)
	case func(Arg) (T, error):
		r.RegisterConstructor(name, c)
	case func(Arg) T:
		r.RegisterConstructor(name, func(a Arg) (T, error) { return c(a), nil })
	default:
		return &InvalidOperatorError{Role: r.role, Name: name, Value: v}
	}
	return nil
}

// Get resolves name with arg.
func (r *Registry[T]) Get(name string, arg Arg) (T, error) {
	r.mu.RLock()
	c, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, &UnknownOperatorError{Role: r.role, Name: name + arg.String()}
	}
	op, err := c(arg)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s operator %s%s: %w", r.role, name, arg, err)
	}
	return op, nil
}

// Resolve parses key with ParseKey and resolves it.
func (r *Registry[T]) Resolve(key string) (T, error) {
	name, arg := ParseKey(key)
	return r.Get(name, arg)
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	_, ok := r.entries[name]
	r.mu.RUnlock()
	return ok
}

// Alias registers alias as the operator key currently resolves to.
func (r *Registry[T]) Alias(alias, key string) error {
	op, err := r.Resolve(key)
	if err != nil {
		return err
	}
	r.Register(alias, op)
	return nil
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Clone returns an independent registry with the same entries.
func (r *Registry[T]) Clone() *Registry[T] {
	out := NewRegistry[T](r.role)
	r.mu.RLock()
	for n, c := range r.entries {
		out.entries[n] = c
	}
	r.mu.RUnlock()
	return out
}

// Registries groups the three registries a compiler resolves against.
type Registries struct {
	Psi   *Registry[Psi]
	Sigma *Registry[Sigma]
	Phi   *Registry[Phi]
}

// Defaults returns fresh registries holding the builtin operators.
func Defaults() Registries {
	return Registries{Psi: DefaultPsi(), Sigma: DefaultSigma(), Phi: DefaultPhi()}
}

// Add registers v in the registry for role.
func (rs Registries) Add(role, name string, v any) error {
	switch role {
	case "psi":
		return rs.Psi.Add(name, v)
	case "sigma":
		return rs.Sigma.Add(name, v)
	case "phi":
		return rs.Phi.Add(name, v)
	}
	return fmt.Errorf("operator: unknown role %q", role)
}

// Alias registers alias in the registry for role.
func (rs Registries) Alias(role, alias, key string) error {
	switch role {
	case "psi":
		return rs.Psi.Alias(alias, key)
	case "sigma":
		return rs.Sigma.Alias(alias, key)
	case "phi":
		return rs.Phi.Alias(alias, key)
	}
	return fmt.Errorf("operator: unknown role %q", role)
}
