package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
	"github.com/nalonix/better-auth/internal/pkg/pkgrouter"
)

const maxBodyBytes = 1 << 20

// RouterConfig carries the pieces BuildRouter binds together.
type RouterConfig struct {
	BasePath       string
	Ambient        *Ambient
	Classifier     *Classifier
	TrustedOrigins []string
}

// BuildRouter binds the operation table to the HTTP path space.
//
// Every operation is registered under the base path with the method and
// path from its definition. Each bound route runs the CSRF guard first,
// then plugin middleware whose pattern matches the operation path, then the
// dispatcher. The classifier is the single sink for every failure raised on
// the way; the caller still receives the failure unchanged, encoded by the
// router's error codec.
func BuildRouter(r *pkgrouter.Router, d *Dispatcher, middlewares []Middleware, cfg RouterConfig) {
	chain := make([]Middleware, 0, len(middlewares)+1)
	chain = append(chain, wrapAmbient(cfg.Ambient, CSRFGuard(cfg.TrustedOrigins)))
	chain = append(chain, middlewares...)

	base := strings.TrimSuffix(cfg.BasePath, "/")

	for _, name := range d.Table().Names() {
		op, ok := d.Table().Get(name)
		if !ok {
			continue
		}
		r.Method(op.Method, base+op.Path, bindOperation(d, op, chain, cfg))
	}
}

func bindOperation(d *Dispatcher, op *Operation, chain []Middleware, cfg RouterConfig) pkgrouter.Handler {
	return func(ctx context.Context, req *http.Request) (any, error) {
		dctx, err := requestContext(ctx, req, cfg.Ambient, op)
		if err == nil {
			var resp any
			resp, err = runChain(chain, d, op, dctx)
			if err == nil {
				return finalize(dctx, resp), nil
			}
		}

		if cfg.Classifier != nil {
			cfg.Classifier.Classify(ctx, err)
		}
		return nil, err
	}
}

// runChain executes the middleware chain, then the dispatcher. A non-nil
// middleware response short-circuits dispatch; a middleware error aborts it.
func runChain(chain []Middleware, d *Dispatcher, op *Operation, dctx *Context) (any, error) {
	for _, mw := range chain {
		if !MatchPath(mw.Path, op.Path) {
			continue
		}
		resp, err := mw.Handler(dctx)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}

	return d.Dispatch(op.Name, dctx)
}

// requestContext builds the request layer of the dispatch context from the
// raw HTTP request.
func requestContext(parent context.Context, req *http.Request, ambient *Ambient, op *Operation) (*Context, error) {
	dctx := NewContext(parent, ambient)
	dctx.Request = req
	dctx.Method = op.Method
	dctx.Path = op.Path
	dctx.Query = req.URL.Query()
	dctx.Headers = req.Header

	for _, p := range httprouter.ParamsFromContext(parent) {
		dctx.Params[p.Key] = p.Value
	}

	if req.Body != nil && req.Method != http.MethodGet && req.Method != http.MethodHead {
		if err := decodeBody(req, dctx); err != nil {
			return nil, err
		}
	}

	return dctx, nil
}

func decodeBody(req *http.Request, dctx *Context) error {
	contentType := req.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		return pkgerror.NewServer(err)
	}
	if len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, &dctx.Body); err != nil {
		return pkgerror.NewInvalidFormat()
	}

	return nil
}

// finalize attaches the headers accumulated on the context to the outgoing
// response. An after-hook that already produced a Reply keeps its own
// status and headers; context headers are added underneath.
func finalize(dctx *Context, resp any) any {
	if reply, ok := resp.(*Reply); ok {
		if reply.Header == nil {
			reply.Header = http.Header{}
		}
		for key, values := range dctx.ResponseHeader() {
			if len(reply.Header.Values(key)) > 0 {
				continue
			}
			for _, v := range values {
				reply.Header.Add(key, v)
			}
		}
		return reply
	}

	return &Reply{Status: http.StatusOK, Header: dctx.ResponseHeader(), Body: resp}
}
