// Package httpserver exposes the proposal operations as a JSON API.
//
// It is the execution boundary for caller identity: the fronting proxy
// authenticates the caller and sets the configured principal header, and
// handlers treat that value as an opaque, already-verified principal.
// Mutating routes without the header are rejected.
package httpserver
