package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talkflow/talkflow/internal/asr"
	"github.com/talkflow/talkflow/internal/audio"
	"github.com/talkflow/talkflow/internal/config"
	"github.com/talkflow/talkflow/internal/metrics"
	"github.com/talkflow/talkflow/internal/translate"
	"github.com/talkflow/talkflow/internal/tts"
	"github.com/talkflow/talkflow/internal/vad"
)

// Options are the runtime-adjustable settings of one session.
type Options struct {
	SourceLang string
	TargetLang string
	Voice      string
	VADEnabled bool
}

// ConfigUpdate carries a partial options change; nil fields keep their
// current value. Applying an update also clears a failure pause.
type ConfigUpdate struct {
	SourceLang *string
	TargetLang *string
	Voice      *string
	VADEnabled *bool
}

// Deps are the collaborators an orchestrator needs. Metrics and Logger may be
// nil.
type Deps struct {
	Detector    vad.Detector
	Recognizer  asr.Recognizer
	Translator  translate.Translator
	Synthesizer tts.Synthesizer
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// queuedSegment pins a segment to the generation it was admitted under, so
// results produced across a reset can be recognized as stale.
type queuedSegment struct {
	seg *audio.Segment
	gen uint64
}

// Orchestrator runs the processing chain for one session: it frames incoming
// audio, classifies and assembles it into segments on the caller's goroutine,
// and hands completed segments to a single worker goroutine that runs the
// recognition, translation and synthesis stages in order. All output leaves
// through the Events channel in processing order.
type Orchestrator struct {
	id  string
	cfg *config.Config

	recognizer  asr.Recognizer
	translator  translate.Translator
	synthesizer tts.Synthesizer
	metrics     *metrics.Metrics
	logger      *slog.Logger

	framer    *audio.Framer
	detector  vad.Detector
	assembler *audio.Assembler

	queue      chan queuedSegment
	events     chan Event
	generation atomic.Uint64
	workerDone chan struct{}

	mu       sync.RWMutex
	opts     Options
	paused   bool
	failures int
	stopped  bool
	speaking bool

	// Statistics
	bytesReceived   uint64
	framesProcessed uint64
	segmentsEmitted uint64
	segmentsDropped uint64

	emitMu       sync.Mutex
	eventsClosed bool
}

// Stats is a point-in-time snapshot of one session's pipeline.
type Stats struct {
	SessionID       string `json:"session_id"`
	BytesReceived   uint64 `json:"bytes_received"`
	FramesProcessed uint64 `json:"frames_processed"`
	SegmentsEmitted uint64 `json:"segments_emitted"`
	SegmentsDropped uint64 `json:"segments_dropped"`
	Failures        int    `json:"consecutive_failures"`
	Paused          bool   `json:"paused"`
	Speaking        bool   `json:"speaking"`
	Generation      uint64 `json:"generation"`
}

// NewOrchestrator creates a session pipeline and starts its worker.
func NewOrchestrator(id string, cfg *config.Config, deps Deps) (*Orchestrator, error) {
	framer, err := audio.NewFramer(cfg.Audio.SampleRate)
	if err != nil {
		return nil, err
	}

	if deps.Detector == nil || deps.Recognizer == nil || deps.Translator == nil || deps.Synthesizer == nil {
		return nil, fmt.Errorf("all pipeline collaborators must be provided")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	asmCfg := audio.NewAssemblerConfig(
		cfg.Audio.SampleRate,
		framer.FrameSize(),
		cfg.VAD.GetMinSpeechDuration(),
		cfg.VAD.GetMinSilenceDuration(),
		cfg.VAD.GetSpeechPad(),
		cfg.Audio.GetMaxSegmentDuration(),
		cfg.Audio.GetChunkDuration(),
		!cfg.VAD.Enabled,
	)

	o := &Orchestrator{
		id:          id,
		cfg:         cfg,
		recognizer:  deps.Recognizer,
		translator:  deps.Translator,
		synthesizer: deps.Synthesizer,
		metrics:     deps.Metrics,
		logger:      logger.With("session_id", id),
		framer:      framer,
		detector:    deps.Detector,
		assembler:   audio.NewAssembler(asmCfg),
		queue:       make(chan queuedSegment, cfg.Pipeline.QueueSize),
		events:      make(chan Event, cfg.Pipeline.EventBuffer),
		workerDone:  make(chan struct{}),
		opts: Options{
			SourceLang: cfg.Languages.Source,
			TargetLang: cfg.Languages.Target,
			Voice:      cfg.TTS.Voice,
			VADEnabled: cfg.VAD.Enabled,
		},
	}

	go o.worker()

	return o, nil
}

// ID returns the session identifier.
func (o *Orchestrator) ID() string {
	return o.id
}

// Events returns the session's ordered event stream. The channel is closed
// after Stop once the worker has drained.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// PushAudio feeds little-endian PCM-16 bytes into the session. Complete
// frames are classified and assembled synchronously; completed segments are
// queued for the worker. While the session is paused after repeated failures
// the audio is accepted and discarded.
func (o *Orchestrator) PushAudio(data []byte) error {
	samples, err := audio.BytesToSamples(data)
	if err != nil {
		return fmt.Errorf("invalid audio payload: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return fmt.Errorf("session %s is stopped", o.id)
	}

	o.bytesReceived += uint64(len(data))
	o.metrics.RecordAudioReceived(len(data))

	if o.paused {
		return nil
	}

	frames := o.framer.Push(samples)
	for _, frame := range frames {
		o.framesProcessed++

		d, err := o.detector.Decide(frame)
		if err != nil {
			return fmt.Errorf("VAD failed on frame %d: %w", o.framesProcessed, err)
		}

		seg := o.assembler.Process(d, frame)
		o.updateSpeakingLocked()
		if seg != nil {
			o.enqueueLocked(seg)
		}
	}
	o.metrics.RecordFramesProcessed(len(frames))

	return nil
}

// Configure applies a partial settings update. Toggling VAD finalizes any
// in-progress segment before switching modes; any failure pause is cleared.
func (o *Orchestrator) Configure(u ConfigUpdate) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return fmt.Errorf("session %s is stopped", o.id)
	}

	invalidate := false
	if u.SourceLang != nil && *u.SourceLang != o.opts.SourceLang {
		o.opts.SourceLang = *u.SourceLang
		invalidate = true
	}
	if u.TargetLang != nil && *u.TargetLang != o.opts.TargetLang {
		o.opts.TargetLang = *u.TargetLang
		invalidate = true
	}
	if u.Voice != nil {
		o.opts.Voice = *u.Voice
	}

	// A changed language pair makes in-flight results meaningless; they are
	// discarded the same way a reset discards them. The bump happens before
	// the VAD toggle below so a segment flushed there is admitted under the
	// new generation and processed with the new settings.
	if invalidate {
		o.generation.Add(1)
	}

	if u.VADEnabled != nil && *u.VADEnabled != o.opts.VADEnabled {
		o.opts.VADEnabled = *u.VADEnabled
		if seg := o.assembler.Flush(); seg != nil {
			o.enqueueLocked(seg)
		}
		o.assembler.SetPassthrough(!o.opts.VADEnabled)
		o.detector.Reset()
		o.speaking = false
	}

	o.paused = false
	o.failures = 0

	o.logger.Info("session reconfigured",
		"source_lang", o.opts.SourceLang,
		"target_lang", o.opts.TargetLang,
		"voice", o.opts.Voice,
		"vad_enabled", o.opts.VADEnabled)

	return nil
}

// Reset discards all buffered audio, the in-progress segment and every queued
// segment, and invalidates results of segments already being processed. The
// reset is acknowledged on the event stream.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()

	if o.stopped {
		o.mu.Unlock()
		return fmt.Errorf("session %s is stopped", o.id)
	}

	o.generation.Add(1)
	o.framer.Reset()
	o.detector.Reset()
	o.assembler.Reset()
	o.speaking = false
	o.paused = false
	o.failures = 0

drain:
	for {
		select {
		case <-o.queue:
			o.segmentsDropped++
			o.metrics.SetQueueDepth(-1)
			o.metrics.RecordSegmentDropped("reset")
		default:
			break drain
		}
	}

	o.mu.Unlock()

	o.logger.Info("session reset", "generation", o.generation.Load())
	o.emit(Event{Type: EventResetComplete})

	return nil
}

// Stop flushes any in-progress segment, closes intake and waits for the
// worker to drain queued segments, bounded by ctx. The events channel closes
// when the worker finishes.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true

	if seg := o.assembler.Flush(); seg != nil && !o.paused {
		o.enqueueLocked(seg)
	}
	close(o.queue)
	o.mu.Unlock()

	select {
	case <-o.workerDone:
	case <-ctx.Done():
		o.logger.Warn("session stop drain window expired")
	}
}

// GetStats returns a snapshot of the session's pipeline statistics.
func (o *Orchestrator) GetStats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return Stats{
		SessionID:       o.id,
		BytesReceived:   o.bytesReceived,
		FramesProcessed: o.framesProcessed,
		SegmentsEmitted: o.segmentsEmitted,
		SegmentsDropped: o.segmentsDropped,
		Failures:        o.failures,
		Paused:          o.paused,
		Speaking:        o.speaking,
		Generation:      o.generation.Load(),
	}
}

// updateSpeakingLocked emits a vad_status event when the assembler crosses
// between idle and active. Passthrough mode reports nothing.
func (o *Orchestrator) updateSpeakingLocked() {
	if !o.opts.VADEnabled {
		return
	}

	speaking := o.assembler.State() != audio.StateIdle
	if speaking == o.speaking {
		return
	}
	o.speaking = speaking
	o.emit(Event{Type: EventVADStatus, Speaking: speaking})
}

// enqueueLocked queues a segment for the worker, dropping the oldest queued
// segment when the queue is full so the freshest audio wins.
func (o *Orchestrator) enqueueLocked(seg *audio.Segment) {
	o.segmentsEmitted++
	o.metrics.RecordSegmentEmitted(o.emitReason(seg), seg.Duration(o.cfg.Audio.SampleRate).Seconds())

	item := queuedSegment{seg: seg, gen: o.generation.Load()}
	for {
		select {
		case o.queue <- item:
			o.metrics.SetQueueDepth(1)
			return
		default:
		}

		select {
		case dropped := <-o.queue:
			o.segmentsDropped++
			o.metrics.SetQueueDepth(-1)
			o.metrics.RecordSegmentDropped("backpressure")
			o.logger.Warn("segment queue full, dropping oldest",
				"dropped_segment", dropped.seg.ID, "queued_segment", seg.ID)
		default:
		}
	}
}

func (o *Orchestrator) emitReason(seg *audio.Segment) string {
	switch {
	case !o.opts.VADEnabled:
		return "interval"
	case seg.Forced:
		return "capped"
	default:
		return "silence"
	}
}

// emit delivers an event to the session stream, dropping it if the buffer is
// full so a slow reader cannot stall the pipeline.
func (o *Orchestrator) emit(ev Event) {
	ev.SessionID = o.id
	ev.Timestamp = time.Now()

	o.emitMu.Lock()
	defer o.emitMu.Unlock()

	if o.eventsClosed {
		return
	}

	select {
	case o.events <- ev:
		o.metrics.RecordEventEmitted(string(ev.Type))
	default:
		o.metrics.RecordEventDropped()
		o.logger.Warn("event buffer full, dropping event", "event_type", ev.Type)
	}
}

// worker consumes queued segments one at a time until the queue closes, then
// closes the event stream.
func (o *Orchestrator) worker() {
	defer close(o.workerDone)
	defer func() {
		o.emitMu.Lock()
		o.eventsClosed = true
		close(o.events)
		o.emitMu.Unlock()
	}()

	for item := range o.queue {
		o.metrics.SetQueueDepth(-1)
		o.process(item)
	}
}

// process runs one segment through the three stages. A stale generation after
// any stage aborts silently; a stage failure is reported and processing moves
// on to the next segment.
func (o *Orchestrator) process(item queuedSegment) {
	if o.generation.Load() != item.gen {
		o.metrics.RecordSegmentDropped("reset")
		return
	}

	o.mu.RLock()
	opts := o.opts
	paused := o.paused
	o.mu.RUnlock()

	if paused {
		o.metrics.RecordSegmentDropped("paused")
		return
	}

	text, ok := o.recognizeStage(item, opts)
	if !ok {
		return
	}
	if strings.TrimSpace(text) == "" {
		o.clearFailures()
		return
	}

	translated, ok := o.translateStage(item, text, opts)
	if !ok {
		return
	}

	if !o.synthesizeStage(item, translated, opts) {
		return
	}

	o.clearFailures()
}

// recognizeStage transcribes the segment, streaming stabilized partial
// updates as they arrive. Returns the final transcript.
func (o *Orchestrator) recognizeStage(item queuedSegment, opts Options) (string, bool) {
	seg := item.seg

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.Pipeline.GetStageTimeout())
	defer cancel()

	start := time.Now()
	partials, err := o.recognizer.Recognize(ctx, asr.Request{
		SegmentID:  seg.ID,
		Samples:    seg.Samples,
		SampleRate: o.cfg.Audio.SampleRate,
		Language:   opts.SourceLang,
		Model:      o.cfg.ASR.Model,
	})
	if err != nil {
		o.stageFailure(seg, "asr", err)
		return "", false
	}

	stab := NewStabilizer()
	var finalText string
	var recErr error

	for p := range partials {
		if o.generation.Load() != item.gen {
			cancel()
			for range partials {
			}
			o.metrics.RecordStaleResult()
			return "", false
		}

		if p.Err != nil {
			recErr = p.Err
			continue
		}

		d := stab.Advance(p.Text, p.Final)
		if p.Final {
			finalText = d.Display
		} else if d.Op != DeltaNone {
			o.emit(Event{
				Type:      EventPartialTranscript,
				SegmentID: seg.ID,
				Seq:       seg.Seq,
				Text:      d.Display,
				Delta:     &d,
			})
		}
	}
	o.metrics.RecordStageLatency("asr", time.Since(start).Seconds())

	if recErr != nil {
		o.stageFailure(seg, "asr", recErr)
		return "", false
	}
	if o.generation.Load() != item.gen {
		o.metrics.RecordStaleResult()
		return "", false
	}

	o.emit(Event{
		Type:      EventStableTranscript,
		SegmentID: seg.ID,
		Seq:       seg.Seq,
		Text:      finalText,
		LatencyMs: float64(time.Since(start).Milliseconds()),
	})

	return finalText, true
}

// translateStage translates the final transcript into the target language.
func (o *Orchestrator) translateStage(item queuedSegment, text string, opts Options) (string, bool) {
	seg := item.seg

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.Pipeline.GetStageTimeout())
	defer cancel()

	start := time.Now()
	translated, err := o.translator.Translate(ctx, text, opts.SourceLang, opts.TargetLang)
	o.metrics.RecordStageLatency("translate", time.Since(start).Seconds())
	if err != nil {
		o.stageFailure(seg, "translate", err)
		return "", false
	}
	if o.generation.Load() != item.gen {
		o.metrics.RecordStaleResult()
		return "", false
	}

	o.emit(Event{
		Type:           EventTranslation,
		SegmentID:      seg.ID,
		Seq:            seg.Seq,
		Text:           text,
		SourceLang:     opts.SourceLang,
		TargetLang:     opts.TargetLang,
		TranslatedText: translated,
		LatencyMs:      float64(time.Since(start).Milliseconds()),
	})

	return translated, true
}

// synthesizeStage renders the translation as speech.
func (o *Orchestrator) synthesizeStage(item queuedSegment, translated string, opts Options) bool {
	seg := item.seg

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.Pipeline.GetStageTimeout())
	defer cancel()

	start := time.Now()
	result, err := o.synthesizer.Synthesize(ctx, translated, opts.TargetLang, opts.Voice)
	o.metrics.RecordStageLatency("tts", time.Since(start).Seconds())
	if err != nil {
		o.stageFailure(seg, "tts", err)
		return false
	}
	if o.generation.Load() != item.gen {
		o.metrics.RecordStaleResult()
		return false
	}

	o.emit(Event{
		Type:       EventSynthesisAudio,
		SegmentID:  seg.ID,
		Seq:        seg.Seq,
		Audio:      result.Audio,
		SampleRate: result.SampleRate,
		Voice:      result.Voice,
		LatencyMs:  float64(time.Since(start).Milliseconds()),
	})

	return true
}

// stageFailure reports a failed stage and pauses the session once failures
// reach the configured threshold.
func (o *Orchestrator) stageFailure(seg *audio.Segment, stage string, err error) {
	o.metrics.RecordStageError(stage)
	o.logger.Error("pipeline stage failed",
		"segment_id", seg.ID, "stage", stage, "error", err)

	o.emit(Event{
		Type:      EventStageError,
		SegmentID: seg.ID,
		Seq:       seg.Seq,
		Stage:     stage,
		Error:     err.Error(),
	})

	o.mu.Lock()
	o.failures++
	tripped := !o.paused && o.failures >= o.cfg.Pipeline.FailureThreshold
	if tripped {
		o.paused = true
	}
	count := o.failures
	o.mu.Unlock()

	if tripped {
		o.logger.Error("session paused after consecutive stage failures", "failures", count)
		o.emit(Event{
			Type:  EventSessionError,
			Error: fmt.Sprintf("pipeline paused after %d consecutive stage failures", count),
		})
	}
}

func (o *Orchestrator) clearFailures() {
	o.mu.Lock()
	o.failures = 0
	o.mu.Unlock()
}
