// Package audio handles audio sample plumbing for the pipeline: slicing an
// unbounded stream of arbitrary-sized chunks into exact fixed-size VAD frames,
// assembling frame-level speech decisions into bounded speech segments, and
// converting between wire PCM-16 bytes, normalized float samples, and WAV.
package audio
