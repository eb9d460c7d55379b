// Package serverrun wires the runtime, logger, and HTTP server together
// and runs them until shutdown.
package serverrun
