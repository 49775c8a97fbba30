// Package middleware provides net/http integration for the token lifecycle
// engine: bearer-token extraction, session verification, and payload
// propagation through the request context.
package middleware
