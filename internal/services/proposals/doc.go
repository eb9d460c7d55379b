// Package proposals implements the proposal operations on top of the
// registry: create, read, edit, close, and vote. Each operation checks
// caller authorization and proposal state before its single write; a
// failed check leaves the stored record untouched.
package proposals
