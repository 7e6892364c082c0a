// Package pipeline coordinates the per-session processing chain: audio intake
// through framing, VAD and segment assembly, then recognition, transcript
// stabilization, translation and synthesis, delivered as an ordered event
// stream.
package pipeline
