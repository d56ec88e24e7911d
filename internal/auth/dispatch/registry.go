package dispatch

import (
	"net/http"
	"sort"
)

// Operation is an assembled table entry: the endpoint definition plus the
// hook-wrapped invocation. Metadata stays introspectable for the router.
type Operation struct {
	Endpoint
	table *Table
}

// Invoke runs the full dispatch pipeline for this operation.
func (o *Operation) Invoke(ctx *Context) (any, error) {
	return o.table.dispatch(o, ctx)
}

// Table is the immutable operation table produced by Assemble. It maps
// operation names to invokable endpoints and holds the hook pipeline
// concatenated in plugin-registration order.
type Table struct {
	ambient *Ambient
	ops     map[string]*Operation
	names   []string
	before  []BeforeHook
	after   []AfterHook
}

// Assemble merges built-in endpoints with plugin-contributed endpoints into
// one operation table.
//
// The fold is order-preserving and last-write-wins: plugins are applied in
// declaration order over the built-ins, so a later plugin's endpoint of the
// same name replaces an earlier one, and any plugin endpoint replaces a
// built-in. The synthetic "ok" and "error" endpoints are merged last and
// never displace a plugin's definition of those names.
func Assemble(ambient *Ambient, builtins []Endpoint, plugins []Plugin) *Table {
	t := &Table{
		ambient: ambient,
		ops:     make(map[string]*Operation),
	}

	for _, ep := range builtins {
		t.put(ep)
	}

	for _, p := range plugins {
		names := make([]string, 0, len(p.Endpoints))
		for name := range p.Endpoints {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ep := p.Endpoints[name]
			ep.Name = name
			t.put(ep)
		}

		t.before = append(t.before, p.Hooks.Before...)
		t.after = append(t.after, p.Hooks.After...)
	}

	for _, ep := range syntheticEndpoints() {
		if _, taken := t.ops[ep.Name]; taken {
			continue
		}
		t.put(ep)
	}

	return t
}

func (t *Table) put(ep Endpoint) {
	if _, exists := t.ops[ep.Name]; !exists {
		t.names = append(t.names, ep.Name)
	}
	t.ops[ep.Name] = &Operation{Endpoint: ep, table: t}
}

// Get returns the operation registered under name.
func (t *Table) Get(name string) (*Operation, bool) {
	op, ok := t.ops[name]
	return op, ok
}

// Names lists operation names in registration order. The slice is a copy.
func (t *Table) Names() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// syntheticEndpoints are the fixed service-health operations appended after
// every plugin has been merged.
func syntheticEndpoints() []Endpoint {
	return []Endpoint{
		{
			Name:   "ok",
			Path:   "/ok",
			Method: http.MethodGet,
			Handler: func(ctx *Context) (any, error) {
				return map[string]bool{"ok": true}, nil
			},
		},
		{
			Name:   "error",
			Path:   "/error",
			Method: http.MethodGet,
			Handler: func(ctx *Context) (any, error) {
				return map[string]string{
					"message": "an error occurred during authentication",
					"hint":    "check the service logs for the classified failure",
				}, nil
			},
		},
	}
}
