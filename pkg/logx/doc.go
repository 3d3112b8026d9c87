// Package logx is archsite's zerolog facade.
//
// New returns a Service that owns the sinks (pretty console, JSON file and a
// rate-limited operator alert channel) and a Logger whose fields are bound
// once and survive Apply. HTTPMiddleware writes the access log.
package logx
