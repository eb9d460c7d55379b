// Package runtime wires the store, registry, and configuration into a
// single handle opened once at startup and injected into services and
// servers.
package runtime
