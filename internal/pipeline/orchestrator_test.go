package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talkflow/talkflow/internal/asr"
	"github.com/talkflow/talkflow/internal/audio"
	"github.com/talkflow/talkflow/internal/config"
	"github.com/talkflow/talkflow/internal/translate"
	"github.com/talkflow/talkflow/internal/tts"
	"github.com/talkflow/talkflow/internal/vad"
)

// scriptedRecognizer fails a fixed number of leading calls, optionally blocks
// until released, then answers with a fixed transcript.
type scriptedRecognizer struct {
	transcript string
	failures   int
	block      chan struct{}

	mu    sync.Mutex
	calls int
}

func (r *scriptedRecognizer) Recognize(ctx context.Context, req asr.Request) (<-chan asr.Partial, error) {
	r.mu.Lock()
	r.calls++
	fail := r.calls <= r.failures
	block := r.block
	r.mu.Unlock()

	out := make(chan asr.Partial, 1)
	go func() {
		defer close(out)

		if block != nil {
			select {
			case <-block:
			case <-ctx.Done():
				return
			}
		}

		p := asr.Partial{SegmentID: req.SegmentID, Final: true, EmittedAt: time.Now()}
		if fail {
			p.Err = errors.New("scripted recognition failure")
		} else {
			p.Text = r.transcript
		}
		out <- p
	}()

	return out, nil
}

// passthroughConfig segments every 4 frames regardless of content.
func passthroughConfig() *config.Config {
	cfg := config.Default()
	cfg.VAD.Enabled = false
	cfg.Audio.ChunkDurationMs = 128
	cfg.Pipeline.EventBuffer = 256
	return cfg
}

func pcmFrames(n int) []byte {
	return audio.SamplesToBytes(make([]float32, n*512))
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, rec asr.Recognizer, det vad.Detector) *Orchestrator {
	t.Helper()

	if det == nil {
		det = &vad.Mock{FrameSize: 512}
	}

	o, err := NewOrchestrator("test-session", cfg, Deps{
		Detector:    det,
		Recognizer:  rec,
		Translator:  translate.Mock{},
		Synthesizer: &tts.Mock{SampleRate: 16000},
	})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		o.Stop(ctx)
	})

	return o
}

func waitFor(t *testing.T, events <-chan Event, want EventType) Event {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func TestOrchestratorEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.EventBuffer = 256

	// 8 speech frames then explicit silence: enough speech (250 ms =
	// 7 frames), and the segment closes after 9 silence frames (300 ms).
	// The script covers all 20 pushed frames; the mock repeats its last
	// entry, so it must end on silence.
	script := make([]bool, 20)
	for i := 0; i < 8; i++ {
		script[i] = true
	}
	det := &vad.Mock{Script: script, FrameSize: 512}

	o := newTestOrchestrator(t, cfg, &asr.MockRecognizer{Transcript: "hello world"}, det)

	if err := o.PushAudio(pcmFrames(20)); err != nil {
		t.Fatalf("PushAudio failed: %v", err)
	}

	onset := waitFor(t, o.Events(), EventVADStatus)
	if !onset.Speaking {
		t.Error("first vad_status should report speech onset")
	}

	partial := waitFor(t, o.Events(), EventPartialTranscript)
	if partial.Delta == nil || partial.Delta.Op != DeltaAppend {
		t.Errorf("partial delta = %+v, want append", partial.Delta)
	}
	if partial.Text != "hello" {
		t.Errorf("partial text = %q, want \"hello\"", partial.Text)
	}

	stable := waitFor(t, o.Events(), EventStableTranscript)
	if stable.Text != "hello world" {
		t.Errorf("stable text = %q, want \"hello world\"", stable.Text)
	}

	translation := waitFor(t, o.Events(), EventTranslation)
	if translation.TranslatedText != "[es] hello world" {
		t.Errorf("translated text = %q", translation.TranslatedText)
	}
	if translation.SourceLang != "en" || translation.TargetLang != "es" {
		t.Errorf("language pair = %s->%s, want en->es", translation.SourceLang, translation.TargetLang)
	}

	synth := waitFor(t, o.Events(), EventSynthesisAudio)
	if len(synth.Audio) == 0 {
		t.Error("synthesis event carries no audio")
	}
	if synth.SampleRate != 16000 {
		t.Errorf("synthesis sample rate = %d, want 16000", synth.SampleRate)
	}
	if synth.SegmentID != stable.SegmentID {
		t.Error("synthesis not tied to the transcribed segment")
	}
}

func TestOrchestratorStageErrorContinues(t *testing.T) {
	rec := &scriptedRecognizer{transcript: "second try", failures: 1}
	o := newTestOrchestrator(t, passthroughConfig(), rec, nil)

	if err := o.PushAudio(pcmFrames(4)); err != nil {
		t.Fatalf("PushAudio failed: %v", err)
	}

	ev := waitFor(t, o.Events(), EventStageError)
	if ev.Stage != "asr" {
		t.Errorf("failed stage = %q, want asr", ev.Stage)
	}

	if err := o.PushAudio(pcmFrames(4)); err != nil {
		t.Fatalf("PushAudio failed: %v", err)
	}

	stable := waitFor(t, o.Events(), EventStableTranscript)
	if stable.Text != "second try" {
		t.Errorf("stable text = %q, want \"second try\"", stable.Text)
	}

	if stats := o.GetStats(); stats.Paused {
		t.Error("single failure should not pause the session")
	}
}

func TestOrchestratorPausesAfterRepeatedFailures(t *testing.T) {
	cfg := passthroughConfig()
	rec := &scriptedRecognizer{transcript: "recovered", failures: cfg.Pipeline.FailureThreshold}
	o := newTestOrchestrator(t, cfg, rec, nil)

	for i := 0; i < cfg.Pipeline.FailureThreshold; i++ {
		if err := o.PushAudio(pcmFrames(4)); err != nil {
			t.Fatalf("PushAudio failed: %v", err)
		}
		waitFor(t, o.Events(), EventStageError)
	}

	waitFor(t, o.Events(), EventSessionError)
	if stats := o.GetStats(); !stats.Paused {
		t.Fatal("session not paused after reaching the failure threshold")
	}

	// Configure clears the pause; the next segment goes through.
	if err := o.Configure(ConfigUpdate{}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if stats := o.GetStats(); stats.Paused {
		t.Fatal("configure did not clear the pause")
	}

	if err := o.PushAudio(pcmFrames(4)); err != nil {
		t.Fatalf("PushAudio failed: %v", err)
	}
	stable := waitFor(t, o.Events(), EventStableTranscript)
	if stable.Text != "recovered" {
		t.Errorf("stable text = %q, want \"recovered\"", stable.Text)
	}
}

func TestOrchestratorVADToggleFlushesSegment(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.EventBuffer = 256
	det := &vad.Mock{Script: []bool{true}, FrameSize: 512}

	o := newTestOrchestrator(t, cfg, &asr.MockRecognizer{Transcript: "mid utterance"}, det)

	// Continuous speech with no closing silence leaves a segment in
	// progress when the toggle arrives.
	if err := o.PushAudio(pcmFrames(10)); err != nil {
		t.Fatalf("PushAudio failed: %v", err)
	}

	disabled := false
	if err := o.Configure(ConfigUpdate{VADEnabled: &disabled}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	// The buffered speech is finalized, not discarded, and a voice-activity
	// toggle alone does not invalidate it.
	stable := waitFor(t, o.Events(), EventStableTranscript)
	if stable.Text != "mid utterance" {
		t.Errorf("stable text = %q, want \"mid utterance\"", stable.Text)
	}
	if stats := o.GetStats(); stats.SegmentsEmitted != 1 {
		t.Errorf("SegmentsEmitted = %d, want 1", stats.SegmentsEmitted)
	}
}

func TestOrchestratorResetInvalidatesInFlight(t *testing.T) {
	release := make(chan struct{})
	rec := &scriptedRecognizer{transcript: "stale result", block: release}
	o := newTestOrchestrator(t, passthroughConfig(), rec, nil)

	if err := o.PushAudio(pcmFrames(4)); err != nil {
		t.Fatalf("PushAudio failed: %v", err)
	}

	// Let the worker pick up the segment before resetting.
	time.Sleep(50 * time.Millisecond)

	if err := o.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	waitFor(t, o.Events(), EventResetComplete)

	close(release)

	// The in-flight result is from before the reset and must not surface.
	select {
	case ev, ok := <-o.Events():
		if ok && (ev.Type == EventStableTranscript || ev.Type == EventPartialTranscript) {
			t.Fatalf("stale %s event leaked after reset: %q", ev.Type, ev.Text)
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestOrchestratorBackpressureDropsOldest(t *testing.T) {
	release := make(chan struct{})
	rec := &scriptedRecognizer{transcript: "x", block: release}
	o := newTestOrchestrator(t, passthroughConfig(), rec, nil)

	// One segment in flight plus a queue of 2; the fourth forces a drop.
	for i := 0; i < 4; i++ {
		if err := o.PushAudio(pcmFrames(4)); err != nil {
			t.Fatalf("PushAudio failed: %v", err)
		}
	}
	close(release)

	stats := o.GetStats()
	if stats.SegmentsEmitted != 4 {
		t.Errorf("SegmentsEmitted = %d, want 4", stats.SegmentsEmitted)
	}
	if stats.SegmentsDropped < 1 {
		t.Errorf("SegmentsDropped = %d, want at least 1", stats.SegmentsDropped)
	}
}

func TestOrchestratorStopFlushesSegment(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.EventBuffer = 256
	det := &vad.Mock{Script: []bool{true}, FrameSize: 512}

	o, err := NewOrchestrator("flush-session", cfg, Deps{
		Detector:    det,
		Recognizer:  &asr.MockRecognizer{Transcript: "cut short"},
		Translator:  translate.Mock{},
		Synthesizer: &tts.Mock{SampleRate: 16000},
	})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	// Continuous speech with no closing silence; only the stop flush can
	// emit it.
	if err := o.PushAudio(pcmFrames(10)); err != nil {
		t.Fatalf("PushAudio failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o.Stop(ctx)

	var sawStable bool
	for ev := range o.Events() {
		if ev.Type == EventStableTranscript {
			sawStable = true
			if ev.Text != "cut short" {
				t.Errorf("stable text = %q, want \"cut short\"", ev.Text)
			}
		}
	}
	if !sawStable {
		t.Error("flushed segment never produced a transcript")
	}
}

func TestOrchestratorRejectsInvalidAudio(t *testing.T) {
	o := newTestOrchestrator(t, passthroughConfig(), &asr.MockRecognizer{}, nil)

	if err := o.PushAudio([]byte{0x01}); err == nil {
		t.Error("expected error for odd-length PCM payload")
	}
}

func TestOrchestratorStoppedSessionRejectsTraffic(t *testing.T) {
	o := newTestOrchestrator(t, passthroughConfig(), &asr.MockRecognizer{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o.Stop(ctx)

	if err := o.PushAudio(pcmFrames(1)); err == nil {
		t.Error("expected error pushing audio into a stopped session")
	}
	if err := o.Reset(); err == nil {
		t.Error("expected error resetting a stopped session")
	}
	if err := o.Configure(ConfigUpdate{}); err == nil {
		t.Error("expected error configuring a stopped session")
	}
}
