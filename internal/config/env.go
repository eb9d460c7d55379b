package config

import (
	"os"
	"strconv"
)

// FromEnv overlays BALLOT_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("BALLOT_MAX_RECORD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxRecordBytes = n
		}
	}
	if v := os.Getenv("BALLOT_PRINCIPAL_HEADER"); v != "" {
		cfg.PrincipalHeader = v
	}
}
