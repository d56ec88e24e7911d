// Package dispatch assembles the authentication API surface and routes every
// invocation through it.
//
// Built-in endpoints and plugin-contributed endpoints are merged into a single
// operation table. Each invocation runs through an ordered pipeline: plugin
// before-hooks (which may rewrite the request context), the endpoint handler,
// then plugin after-hooks (which may replace the response). A CSRF origin
// guard always runs ahead of any plugin middleware, and failures raised
// anywhere in the pipeline are funneled into a single error classifier that
// turns raw backend errors into actionable log entries.
package dispatch
