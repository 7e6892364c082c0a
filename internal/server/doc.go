// Package server exposes the service over HTTP: a WebSocket endpoint for
// streaming audio in and pipeline events out, plus health, stats and
// Prometheus metrics endpoints.
package server
