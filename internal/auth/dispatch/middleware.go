package dispatch

import "strings"

// CollectMiddlewares flattens plugin middleware into one ordered list:
// plugin-declaration order first, per-plugin declaration order second.
//
// Every entry is wrapped so the plugin's handler always observes the ambient
// layer merged underneath the request values, no matter which plugin
// authored it. Plugins without middleware are skipped; entries are never
// deduplicated, so several middleware may match and run for the same path.
func CollectMiddlewares(ambient *Ambient, plugins []Plugin) []Middleware {
	var out []Middleware

	for _, p := range plugins {
		if len(p.Middlewares) == 0 {
			continue
		}
		for _, entry := range p.Middlewares {
			if entry.Handler == nil {
				continue
			}
			out = append(out, wrapAmbient(ambient, entry))
		}
	}

	return out
}

// wrapAmbient returns a middleware whose handler sees the ambient layer
// merged underneath the context values before it runs.
func wrapAmbient(ambient *Ambient, entry Middleware) Middleware {
	handler := entry.Handler
	return Middleware{
		Path: entry.Path,
		Handler: func(ctx *Context) (any, error) {
			ctx.mergeAmbient(ambient)
			return handler(ctx)
		},
	}
}

// MatchPath reports whether an operation path falls under a middleware path
// pattern. Patterns are exact paths, a prefix followed by "/*", or the
// catch-all "/*".
func MatchPath(pattern, path string) bool {
	if pattern == "" || pattern == "/*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return pattern == path
}
