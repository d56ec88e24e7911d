package dispatch

import "net/http"

// Handler executes one operation against a merged request context.
type Handler func(ctx *Context) (any, error)

// Options is the configuration bag attached to an endpoint definition.
type Options struct {
	// RequireAuth marks operations that only make sense with a session.
	// Enforcement happens in the endpoint chain, not in the dispatcher.
	RequireAuth bool

	// Use is a nested handler chain that runs after before-hooks and just
	// ahead of the main handler. An error from any link aborts dispatch.
	Use []Handler

	// Metadata is free-form endpoint metadata for introspection.
	Metadata map[string]any
}

// Endpoint is one addressable operation: a named, path-bound handler plus
// its routing metadata.
type Endpoint struct {
	Name    string
	Path    string
	Method  string
	Headers []string // header names the operation requires on every call
	Options Options
	Handler Handler
}

// Middleware pairs a path pattern with a handler that runs before dispatch.
// Returning a non-nil response short-circuits the request; returning an
// error aborts it; (nil, nil) passes through.
type Middleware struct {
	Path    string
	Handler Handler
}

// Patch is a partial context replacement returned by a before-hook. Each
// present field is merged over the current context; the operation target is
// re-pinned afterwards so a hook cannot redirect the call.
type Patch struct {
	Headers http.Header
	Body    map[string]any
	Values  map[string]any
}

// Replacement is a wholesale response substitution returned by an after-hook.
type Replacement struct {
	Response any
}

// BeforeHook intercepts a call before the handler runs. The matcher sees the
// cumulative context (including patches from earlier hooks) and the target
// endpoint's metadata.
type BeforeHook struct {
	Matcher func(ctx *Context, target Endpoint) bool
	Handler func(ctx *Context) (*Patch, error)
}

// AfterHook observes the call once the handler has returned. The matcher
// sees the ORIGINAL inbound context, not the before-hook output; the handler
// additionally sees the handler result under ctx.Returned. Hooks are
// independent observers: none of them sees another's replacement, but the
// last replacement produced wins.
type AfterHook struct {
	Matcher func(ctx *Context) bool
	Handler func(ctx *Context) (*Replacement, error)
}

// Hooks groups a plugin's interception points.
type Hooks struct {
	Before []BeforeHook
	After  []AfterHook
}

// Plugin is the fixed-shape capability record a unit of extension supplies.
// Any subset of the capability fields may be empty.
type Plugin struct {
	ID          string
	Endpoints   map[string]Endpoint
	Middlewares []Middleware
	Hooks       Hooks
}
