package dispatch

import (
	"log/slog"

	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// sensitiveUserDeletePath is the one operation with a pre-invocation audit
// carve-out. It is a named constant on purpose: the probe must not silently
// generalize to other operations.
const sensitiveUserDeletePath = "/delete-user"

// Dispatcher resolves operation names against the assembled table and runs
// them through the hook pipeline.
type Dispatcher struct {
	table      *Table
	auditProbe Handler
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAuditProbe installs a diagnostic handler invoked before the account
// deletion operation runs. The probe is side-effect only: its result is
// discarded and its errors are logged, never propagated.
func WithAuditProbe(h Handler) DispatcherOption {
	return func(d *Dispatcher) {
		d.auditProbe = h
	}
}

// NewDispatcher builds a dispatcher over an assembled operation table.
func NewDispatcher(table *Table, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{table: table}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Table exposes the underlying operation table for routing and introspection.
func (d *Dispatcher) Table() *Table {
	return d.table
}

// Resolve returns the bound operation for name. The operation carries its
// path, method, options and header metadata so the router can bind routes
// without invoking business logic.
func (d *Dispatcher) Resolve(name string) (*Operation, error) {
	op, ok := d.table.Get(name)
	if !ok {
		return nil, pkgerror.NewBusiness("unknown operation: "+name, pkgerror.CodeNotFound)
	}
	return op, nil
}

// Dispatch resolves and invokes one operation with the given context.
func (d *Dispatcher) Dispatch(name string, ctx *Context) (any, error) {
	op, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}

	if op.Path == sensitiveUserDeletePath && d.auditProbe != nil {
		if _, probeErr := d.auditProbe(ctx); probeErr != nil {
			slog.WarnContext(ctx.Context, "audit probe failed", "operation", name, "error", probeErr)
		}
	}

	return op.Invoke(ctx)
}
