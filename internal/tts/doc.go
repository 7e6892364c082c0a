// Package tts defines the speech synthesis collaborator contract with an
// HTTP client for a Piper-style server and a mock synthesizer.
package tts
