// Package quota implements hierarchical limits and usage counters over
// the customer, project and link scopes.
package quota

import (
	"sort"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

// FieldKind says how a quota's usage is maintained.
type FieldKind int

const (
	// Inert fields are set explicitly, typically from backend reports.
	Inert FieldKind = iota
	// Counter fields count child objects owned directly by the scope.
	Counter
	// Aggregator fields sum the same field over child scopes.
	Aggregator
)

func (k FieldKind) String() string {
	switch k {
	case Counter:
		return "counter"
	case Aggregator:
		return "aggregator"
	}
	return "inert"
}

// Field declares one quota on a scope type.
type Field struct {
	Name         string
	Kind         FieldKind
	IsBackend    bool
	DefaultLimit float64
}

// Registry holds declared fields per scope type and the ancestor chain.
type Registry struct {
	fields  map[model.ScopeType]map[string]Field
	parents map[model.ScopeType]model.ScopeType
}

func NewRegistry() *Registry {
	return &Registry{
		fields:  make(map[model.ScopeType]map[string]Field),
		parents: make(map[model.ScopeType]model.ScopeType),
	}
}

// Declare adds fields to a scope type.
func (r *Registry) Declare(t model.ScopeType, fields ...Field) {
	m, ok := r.fields[t]
	if !ok {
		m = make(map[string]Field)
		r.fields[t] = m
	}
	for _, f := range fields {
		m[f.Name] = f
	}
}

// SetParent declares that usage on child propagates to parent.
func (r *Registry) SetParent(child, parent model.ScopeType) {
	r.parents[child] = parent
}

// Parent returns the parent scope type of t.
func (r *Registry) Parent(t model.ScopeType) (model.ScopeType, bool) {
	p, ok := r.parents[t]
	return p, ok
}

// Field looks up a declared field.
func (r *Registry) Field(t model.ScopeType, name string) (Field, bool) {
	f, ok := r.fields[t][name]
	return f, ok
}

// Fields returns the fields of t sorted by name.
func (r *Registry) Fields(t model.ScopeType) []Field {
	out := make([]Field, 0, len(r.fields[t]))
	for _, f := range r.fields[t] {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultRegistry declares the engine's quota fields.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	unlimited := float64(model.Unlimited)

	r.Declare(model.ScopeLink,
		Field{Name: model.QuotaInstances, Kind: Counter, IsBackend: true, DefaultLimit: unlimited},
		Field{Name: model.QuotaVCPU, Kind: Counter, DefaultLimit: unlimited},
		Field{Name: model.QuotaRAM, Kind: Counter, DefaultLimit: unlimited},
		Field{Name: model.QuotaStorage, Kind: Counter, IsBackend: true, DefaultLimit: unlimited},
		Field{Name: model.QuotaSecurityGroups, Kind: Counter, DefaultLimit: unlimited},
		Field{Name: model.QuotaFloatingIPs, Kind: Counter, DefaultLimit: unlimited},
	)
	r.Declare(model.ScopeProject,
		Field{Name: model.QuotaInstances, Kind: Aggregator, DefaultLimit: unlimited},
		Field{Name: model.QuotaVCPU, Kind: Aggregator, DefaultLimit: unlimited},
		Field{Name: model.QuotaRAM, Kind: Aggregator, DefaultLimit: unlimited},
		Field{Name: model.QuotaStorage, Kind: Aggregator, DefaultLimit: unlimited},
	)
	r.Declare(model.ScopeCustomer,
		Field{Name: model.QuotaInstances, Kind: Aggregator, DefaultLimit: unlimited},
		Field{Name: model.QuotaVCPU, Kind: Aggregator, DefaultLimit: unlimited},
		Field{Name: model.QuotaRAM, Kind: Aggregator, DefaultLimit: unlimited},
		Field{Name: model.QuotaStorage, Kind: Aggregator, DefaultLimit: unlimited},
		Field{Name: model.QuotaProjects, Kind: Counter, DefaultLimit: unlimited},
		Field{Name: model.QuotaServices, Kind: Counter, DefaultLimit: unlimited},
	)
	r.Declare(model.ScopeSettings,
		Field{Name: model.QuotaVCPU, Kind: Inert, IsBackend: true, DefaultLimit: unlimited},
		Field{Name: model.QuotaRAM, Kind: Inert, IsBackend: true, DefaultLimit: unlimited},
		Field{Name: model.QuotaStorage, Kind: Inert, IsBackend: true, DefaultLimit: unlimited},
	)

	r.SetParent(model.ScopeLink, model.ScopeProject)
	r.SetParent(model.ScopeProject, model.ScopeCustomer)
	return r
}
