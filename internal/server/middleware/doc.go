// Package middleware provides HTTP middleware for the kubewire probe server.
// These middleware functions handle security headers and access logging.
package middleware
