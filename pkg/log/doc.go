// Package log provides structured logging for ballot components.
//
// Loggers are constructed explicitly and passed by dependency injection;
// there is no package-level default logger. Fields are attached with the
// helpers in fields.go:
//
//	logger := log.NewLogger(log.WithLevel(log.InfoLevel))
//	logger = logger.With(log.Component("proposals"))
//	logger.Info("created proposal", log.Uint64("key", key))
package log
