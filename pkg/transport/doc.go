// Package transport holds the protocol-agnostic pieces of the HTTP surface:
// the error body written on failure and the access logging middleware.
// The router, handlers and server live in pkg/transport/http.
package transport
