// Package logging provides structured logging for the Snapper agent.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	sessLogger := logger.Component("session")
//	sessLogger.Info("registered", "client_id", id)
//
// # Security
//
// Never log the broker key. Log the username only.
package logging
