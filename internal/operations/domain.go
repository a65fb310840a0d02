package operations

// ParamKind distinguishes plain values from structured element groups.
type ParamKind string

const (
	// KindScalar is a single string, number or boolean element.
	KindScalar ParamKind = "scalar"
	// KindStructured is a nested element group addressed through flat
	// delimiter-separated field paths.
	KindStructured ParamKind = "structured"
)

// Param is one entry in an operation's argument contract.
type Param struct {
	Name     string    `yaml:"name"`
	Kind     ParamKind `yaml:"kind"`
	Required bool      `yaml:"required"`
	// Aliases are alternative caller keys accepted for scalar params.
	Aliases []string `yaml:"aliases"`
	// Fields is the allow-list of flat paths for structured params.
	Fields []string `yaml:"fields"`
}

// Keys returns every caller key that may carry this scalar param, name first.
func (p Param) Keys() []string {
	keys := make([]string, 0, len(p.Aliases)+1)
	keys = append(keys, p.Name)
	return append(keys, p.Aliases...)
}

// Operation describes a remote call exposed by the gateway.
type Operation struct {
	Name    string  `yaml:"name"`
	Wrapper string  `yaml:"wrapper"`
	Params  []Param `yaml:"params"`
}

// ElementOrder lists the leaf element paths of the request in schema order.
func (o Operation) ElementOrder() []string {
	order := make([]string, 0, 2)
	seen := make(map[string]struct{})
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		order = append(order, path)
	}
	for _, p := range o.Params {
		if p.Kind == KindScalar {
			add(p.Name)
			continue
		}
		for _, field := range p.Fields {
			add(field)
		}
	}
	return order
}
