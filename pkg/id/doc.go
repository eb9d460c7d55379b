// Package id generates compact, time-ordered request identifiers used to
// correlate HTTP access log entries.
package id
