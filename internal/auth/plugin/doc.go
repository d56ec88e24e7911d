// Package plugin ships the first-party dispatch plugins: bearer token
// support, Prometheus metrics, and sign-in rate limiting. Each one is a
// plain dispatch.Plugin value, assembled exactly like third-party plugins
// would be.
package plugin
