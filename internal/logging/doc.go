// Package logging provides structured logging utilities for kubewire.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Logger construction for the CLI (text or JSON, leveled)
//   - Consistent attribute naming for requests and streams
//   - Host/URL sanitization and bearer token masking
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "list")
//	logger.Info("listing resources",
//	    logging.Namespace("default"),
//	    logging.ResourceType("pods"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("connection resolved",
//	    logging.Host(apiServer),
//	    "token", logging.SanitizeToken(token))
//
// # Security Considerations
//
//   - API server URLs have IP addresses redacted to prevent topology leakage
//   - Bearer tokens are never logged directly
package logging
