// Package auth provides API key authentication for the REST API and
// WebSocket endpoints.
package auth
