package tool

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)

// Registry maps tool names to tools. Definitions are checked once, at registration.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	validate *validator.Validate
}

func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		validate: validator.New(),
	}
}

func (r *Registry) Register(t Tool) error {
	def := t.Definition()
	if err := r.checkDefinition(def); err != nil {
		return fmt.Errorf("register tool %q: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("register tool %q: already registered", def.Name)
	}
	r.tools[def.Name] = t
	return nil
}

// MustRegister panics on an invalid definition. Used for built-ins at startup.
func (r *Registry) MustRegister(tools ...Tool) *Registry {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Definitions returns every registered definition sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Validate checks a call against its tool's declared schema without invoking it.
func (r *Registry) Validate(call Call) (Tool, error) {
	t, ok := r.Lookup(call.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	def := t.Definition()
	for key := range call.Params {
		if _, declared := def.Parameters[key]; !declared {
			return nil, fmt.Errorf("%w: %s does not accept %q", ErrInvalidParams, call.Name, key)
		}
	}

	for key, p := range def.Parameters {
		value, present := call.Params[key]
		if !present || value == nil {
			if p.Required {
				return nil, fmt.Errorf("%w: %s requires %q", ErrInvalidParams, call.Name, key)
			}
			continue
		}
		if !matchesType(p.Type, value) {
			return nil, fmt.Errorf("%w: %s.%s must be %s", ErrInvalidParams, call.Name, key, p.Type)
		}
		if p.Rules != "" {
			if err := r.validate.Var(value, p.Rules); err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidParams, call.Name, key, err)
			}
		}
	}
	return t, nil
}

func (r *Registry) checkDefinition(def Definition) error {
	if !namePattern.MatchString(def.Name) {
		return fmt.Errorf("name must be snake_case")
	}
	for key, p := range def.Parameters {
		if key == "" {
			return fmt.Errorf("empty parameter name")
		}
		zero, ok := zeroValue(p.Type)
		if !ok {
			return fmt.Errorf("parameter %q has unsupported type %q", key, p.Type)
		}
		if p.Rules != "" {
			if err := r.checkRules(zero, p.Rules); err != nil {
				return fmt.Errorf("parameter %q: %w", key, err)
			}
		}
	}
	return nil
}

// checkRules surfaces malformed validator tags now rather than on the first call.
func (r *Registry) checkRules(zero any, rules string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("bad rules %q: %v", rules, p)
		}
	}()
	_ = r.validate.Var(zero, rules)
	return nil
}

func zeroValue(typ string) (any, bool) {
	switch typ {
	case TypeString:
		return "", true
	case TypeNumber:
		return float64(0), true
	case TypeBoolean:
		return false, true
	case TypeObject:
		return map[string]any{}, true
	case TypeArray:
		return []any{}, true
	}
	return nil, false
}

func matchesType(typ string, value any) bool {
	switch typ {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeArray:
		switch value.(type) {
		case []any, []string:
			return true
		}
		return false
	}
	return false
}
