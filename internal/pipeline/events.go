package pipeline

import (
	"time"
)

// EventType identifies the kind of pipeline event.
type EventType string

const (
	// EventPartialTranscript carries an incremental transcript update for a
	// segment still being recognized.
	EventPartialTranscript EventType = "partial_transcript"
	// EventStableTranscript carries the final transcript of a segment.
	EventStableTranscript EventType = "stable_transcript"
	// EventTranslation carries the translated final transcript.
	EventTranslation EventType = "translation"
	// EventSynthesisAudio carries synthesized speech for the translation.
	EventSynthesisAudio EventType = "synthesis_audio"
	// EventVADStatus reports speech onset and offset.
	EventVADStatus EventType = "vad_status"
	// EventStageError reports a failed stage for one segment; the pipeline
	// continues with the next segment.
	EventStageError EventType = "stage_error"
	// EventSessionError reports that the pipeline paused itself after
	// repeated failures; configure or reset resumes it.
	EventSessionError EventType = "session_error"
	// EventResetComplete acknowledges a reset.
	EventResetComplete EventType = "reset_complete"
)

// Event is one entry in a session's ordered output stream. Fields beyond Type,
// SessionID and Timestamp are populated per event type; Audio is emitted as
// base64 by encoding/json.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	SegmentID string    `json:"segment_id,omitempty"`
	Seq       uint64    `json:"seq,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Transcript events
	Text  string `json:"text,omitempty"`
	Delta *Delta `json:"delta,omitempty"`

	// Translation events
	SourceLang     string `json:"source_lang,omitempty"`
	TargetLang     string `json:"target_lang,omitempty"`
	TranslatedText string `json:"translated_text,omitempty"`

	// Synthesis events
	Audio      []byte `json:"audio,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Voice      string `json:"voice,omitempty"`

	// VAD status events
	Speaking bool `json:"speaking,omitempty"`

	// Error events
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`

	// LatencyMs is the stage call duration for stable_transcript,
	// translation and synthesis_audio events.
	LatencyMs float64 `json:"latency_ms,omitempty"`
}
