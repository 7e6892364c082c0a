// Package asr defines the speech recognition collaborator contract and two
// implementations: an HTTP client for a whisper-style transcription server
// and a mock recognizer for tests and development. Recognition is streaming
// by contract: a request yields zero or more revised partial hypotheses and
// exactly one final transcript.
package asr
