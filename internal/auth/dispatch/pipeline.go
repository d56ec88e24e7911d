package dispatch

import (
	"errors"

	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// dispatch runs the hook pipeline for a single invocation:
// before-hooks -> handler -> after-hooks.
//
// Before-hooks see the cumulative context: each matching hook may return a
// patch that is merged over the current context (patch wins) before the next
// hook runs, with the operation target re-pinned after every merge. The
// handler then runs against the cumulative context with the ambient layer
// merged once more, so it observes a complete context even when no hook ran.
//
// After-hooks are independent observers keyed off the ORIGINAL inbound
// context. Every matching hook receives the original context plus the
// handler result under Returned; the last hook to produce a replacement
// determines the final response. An error at any stage aborts the remaining
// stages.
func (t *Table) dispatch(op *Operation, ctx *Context) (any, error) {
	if ctx == nil {
		return nil, pkgerror.NewServer(errors.New("nil dispatch context"))
	}
	if ctx.Values == nil {
		ctx.Values = map[string]any{}
	}

	ctx.Path = op.Path
	ctx.Method = op.Method

	original := ctx.Clone()

	for _, hook := range t.before {
		if hook.Handler == nil {
			continue
		}
		if hook.Matcher != nil && !hook.Matcher(ctx, op.Endpoint) {
			continue
		}
		patch, err := hook.Handler(ctx)
		if err != nil {
			return nil, err
		}
		ctx.applyPatch(patch)
		ctx.Path = op.Path
		ctx.Method = op.Method
	}

	ctx.mergeAmbient(t.ambient)

	for _, name := range op.Headers {
		if ctx.Headers.Get(name) == "" {
			return nil, pkgerror.NewBusiness("missing required header: "+name, pkgerror.CodeInvalidInput)
		}
	}

	for _, use := range op.Options.Use {
		if _, err := use(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := op.Handler(ctx)
	if err != nil {
		return nil, err
	}

	working := resp
	view := original.withReturned(resp)
	view.mergeAmbient(t.ambient)

	for _, hook := range t.after {
		if hook.Handler == nil {
			continue
		}
		if hook.Matcher != nil && !hook.Matcher(original) {
			continue
		}
		replacement, err := hook.Handler(view)
		if err != nil {
			return nil, err
		}
		if replacement != nil {
			working = replacement.Response
		}
	}

	return working, nil
}
