// Package config holds the ballot server configuration: built-in
// defaults, optional YAML/JSON file loading, and BALLOT_* environment
// overlays applied in that order.
package config
