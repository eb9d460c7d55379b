// Package clientcmd implements the CLI client commands that drive a
// running ballot server over its HTTP API.
package clientcmd
