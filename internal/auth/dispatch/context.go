package dispatch

import (
	"context"
	"net/http"
	"net/url"
)

// Ambient is the long-lived service layer of a request context. It is shared
// by every request and must never be mutated after startup; per-request code
// only reads from it or copies its values into a request overlay.
type Ambient struct {
	// BasePath is the URL prefix all operations are mounted under.
	BasePath string

	// Values are service handles and settings exposed to plugin middleware
	// and hooks. They are overlaid under request values, never over them.
	Values map[string]any
}

// Context is the layered per-request execution environment.
//
// It is built fresh for every call from three layers with fixed precedence:
// the ambient layer (service handles), the request layer (method, path,
// params, headers, parsed body), and the overlay layer (Values written by
// before-hook patches). Request fields win over ambient values where keys
// collide; the operation target (Path, Method) is pinned by the pipeline and
// cannot be rewritten by hooks.
type Context struct {
	Context context.Context
	Ambient *Ambient

	Method  string
	Path    string
	Params  map[string]string
	Query   url.Values
	Headers http.Header
	Body    map[string]any

	// Values is the hook-overlay layer. Before-hook patches and middleware
	// write here; ambient values are merged underneath existing keys.
	Values map[string]any

	// Returned carries the handler's output during the after-hook stage.
	// It is nil at every other stage.
	Returned any

	// Request is the raw inbound request, when the context originates from
	// the HTTP transport. May be nil in tests and internal invocations.
	Request *http.Request

	respHeader http.Header
}

// NewContext returns an empty request context over the given ambient layer.
func NewContext(parent context.Context, ambient *Ambient) *Context {
	if parent == nil {
		parent = context.Background()
	}
	return &Context{
		Context:    parent,
		Ambient:    ambient,
		Params:     map[string]string{},
		Query:      url.Values{},
		Headers:    http.Header{},
		Body:       map[string]any{},
		Values:     map[string]any{},
		respHeader: http.Header{},
	}
}

// Clone returns a copy of the context whose maps are independent of the
// original. Nested values inside Body and Values are shared; hooks must not
// mutate them in place.
func (c *Context) Clone() *Context {
	clone := &Context{
		Context:    c.Context,
		Ambient:    c.Ambient,
		Method:     c.Method,
		Path:       c.Path,
		Params:     make(map[string]string, len(c.Params)),
		Query:      make(url.Values, len(c.Query)),
		Headers:    c.Headers.Clone(),
		Body:       make(map[string]any, len(c.Body)),
		Values:     make(map[string]any, len(c.Values)),
		Returned:   c.Returned,
		Request:    c.Request,
		respHeader: c.respHeader,
	}
	for k, v := range c.Params {
		clone.Params[k] = v
	}
	for k, v := range c.Query {
		clone.Query[k] = v
	}
	for k, v := range c.Body {
		clone.Body[k] = v
	}
	for k, v := range c.Values {
		clone.Values[k] = v
	}
	if clone.Headers == nil {
		clone.Headers = http.Header{}
	}
	return clone
}

// SetHeader records a response header to be written with the final response.
func (c *Context) SetHeader(key, value string) {
	if c.respHeader == nil {
		c.respHeader = http.Header{}
	}
	c.respHeader.Set(key, value)
}

// SetCookie records a Set-Cookie header on the response.
func (c *Context) SetCookie(cookie *http.Cookie) {
	if c.respHeader == nil {
		c.respHeader = http.Header{}
	}
	c.respHeader.Add("Set-Cookie", cookie.String())
}

// ResponseHeader exposes the headers accumulated for the response so far.
func (c *Context) ResponseHeader() http.Header {
	if c.respHeader == nil {
		c.respHeader = http.Header{}
	}
	return c.respHeader
}

// Value reads from the overlay layer.
func (c *Context) Value(key string) (any, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// applyPatch merges a before-hook patch into the context. Patch fields win
// over existing ones. The caller re-pins the operation target afterwards.
func (c *Context) applyPatch(p *Patch) {
	if p == nil {
		return
	}
	for key, values := range p.Headers {
		c.Headers.Del(key)
		for _, v := range values {
			c.Headers.Add(key, v)
		}
	}
	for k, v := range p.Body {
		c.Body[k] = v
	}
	for k, v := range p.Values {
		c.Values[k] = v
	}
}

// mergeAmbient overlays ambient values underneath the request values, so the
// request layer stays authoritative for colliding keys while every consumer
// observes the same ambient shape.
func (c *Context) mergeAmbient(a *Ambient) {
	if a == nil {
		return
	}
	if c.Ambient == nil {
		c.Ambient = a
	}
	if c.Values == nil {
		c.Values = map[string]any{}
	}
	for k, v := range a.Values {
		if _, taken := c.Values[k]; !taken {
			c.Values[k] = v
		}
	}
}

// withReturned produces the view of the context handed to after-hooks: the
// original inbound context plus the handler result under Returned.
func (c *Context) withReturned(resp any) *Context {
	view := c.Clone()
	view.Returned = resp
	return view
}

// Reply is a response carrier that lets a handler or after-hook control the
// HTTP status and attach response headers alongside the JSON payload.
type Reply struct {
	Status int
	Header http.Header
	Body   any
}

// StatusCode reports the HTTP status for the response encoder.
func (r *Reply) StatusCode() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// ResponseHeaders reports headers to attach before encoding.
func (r *Reply) ResponseHeaders() http.Header {
	return r.Header
}

// Payload unwraps the JSON body.
func (r *Reply) Payload() any {
	return r.Body
}
