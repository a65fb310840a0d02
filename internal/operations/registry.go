// Package operations holds the static table of remote operations the
// gateway exposes.
package operations

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/umucyo/guarantee-gateway/internal/payload"
)

//go:embed catalog.yaml
var catalogYAML []byte

// ErrInvalidCatalog indicates a malformed operation definition.
var ErrInvalidCatalog = errors.New("operations: invalid catalog")

// Credential elements are injected into every request wrapper by the
// gateway; catalog params may not claim them.
const (
	ElementID       = "id"
	ElementPassword = "password"
)

// Registry is an immutable name → Operation table. It is safe for concurrent
// use once constructed.
type Registry struct {
	byName map[string]Operation
	order  []string
}

type catalogFile struct {
	Operations []Operation `yaml:"operations"`
}

// NewRegistry validates ops and builds a Registry. Names are exact-match and
// case-sensitive.
func NewRegistry(ops ...Operation) (*Registry, error) {
	r := &Registry{byName: make(map[string]Operation, len(ops)), order: make([]string, 0, len(ops))}
	for _, op := range ops {
		if err := validate(op); err != nil {
			return nil, err
		}
		if _, dup := r.byName[op.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate operation %q", ErrInvalidCatalog, op.Name)
		}
		r.byName[op.Name] = op
		r.order = append(r.order, op.Name)
	}
	return r, nil
}

// Load parses a YAML catalog.
func Load(src io.Reader) (*Registry, error) {
	var file catalogFile
	if err := yaml.NewDecoder(src).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return NewRegistry(file.Operations...)
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry built from the embedded catalog.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Load(strings.NewReader(string(catalogYAML)))
	})
	return defaultRegistry, defaultErr
}

// Resolve looks up an operation by exact name.
func (r *Registry) Resolve(name string) (Operation, bool) {
	if r == nil {
		return Operation{}, false
	}
	op, ok := r.byName[name]
	return op, ok
}

// Names returns operation names in catalog order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports how many operations are registered.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

func validate(op Operation) error {
	if strings.TrimSpace(op.Name) == "" {
		return fmt.Errorf("%w: operation name required", ErrInvalidCatalog)
	}
	if strings.TrimSpace(op.Wrapper) == "" {
		return fmt.Errorf("%w: %s: wrapper element required", ErrInvalidCatalog, op.Name)
	}
	seen := make(map[string]struct{})
	for _, p := range op.Params {
		switch p.Kind {
		case KindScalar:
			if len(p.Fields) > 0 {
				return fmt.Errorf("%w: %s.%s: scalar param cannot declare fields", ErrInvalidCatalog, op.Name, p.Name)
			}
			for _, key := range p.Keys() {
				if _, dup := seen[key]; dup {
					return fmt.Errorf("%w: %s: key %q declared twice", ErrInvalidCatalog, op.Name, key)
				}
				seen[key] = struct{}{}
			}
		case KindStructured:
			if len(p.Fields) == 0 {
				return fmt.Errorf("%w: %s.%s: structured param needs fields", ErrInvalidCatalog, op.Name, p.Name)
			}
			if _, dup := seen[p.Name]; dup {
				return fmt.Errorf("%w: %s: key %q declared twice", ErrInvalidCatalog, op.Name, p.Name)
			}
			seen[p.Name] = struct{}{}
		default:
			return fmt.Errorf("%w: %s.%s: unknown kind %q", ErrInvalidCatalog, op.Name, p.Name, p.Kind)
		}
	}
	return validatePaths(op)
}

// validatePaths rejects element paths that collide with the credential
// elements or that sit on another path's prefix.
func validatePaths(op Operation) error {
	paths := op.ElementOrder()
	for _, path := range paths {
		top, _, _ := strings.Cut(path, payload.Delimiter)
		if top == ElementID || top == ElementPassword {
			return fmt.Errorf("%w: %s: element %q is reserved for credentials", ErrInvalidCatalog, op.Name, path)
		}
		for _, other := range paths {
			if strings.HasPrefix(other, path+payload.Delimiter) {
				return fmt.Errorf("%w: %s: element %q is a prefix of %q", ErrInvalidCatalog, op.Name, path, other)
			}
		}
	}
	return nil
}
