// Package metrics provides Prometheus metrics for audio intake, segmentation,
// pipeline stages, and session lifecycle.
package metrics
