// Package pebblestore wraps a Pebble database with the durability policy
// and small helpers the proposal registry needs. Every committed write
// honors the configured fsync mode, so a record acknowledged to a caller
// survives process restart.
package pebblestore
