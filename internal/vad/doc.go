// Package vad defines the voice-activity-detection collaborator contract and
// a lightweight energy-based detector. A detector classifies one fixed-size
// audio frame at a time; frame sizing is guaranteed upstream by the framer, so
// a frame-size error here always indicates a misconfiguration.
package vad
