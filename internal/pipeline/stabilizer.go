package pipeline

import (
	"unicode/utf8"
)

// DeltaOp describes how a new hypothesis relates to the previous display text.
type DeltaOp string

const (
	// DeltaNone means the hypothesis changed nothing worth showing.
	DeltaNone DeltaOp = "none"
	// DeltaAppend means Text extends the previous display unchanged.
	DeltaAppend DeltaOp = "append"
	// DeltaReplaceTail means the display from byte offset Start onward is
	// replaced by Text.
	DeltaReplaceTail DeltaOp = "replace_tail"
	// DeltaFinal means Text is the segment's final transcript.
	DeltaFinal DeltaOp = "final"
)

// Delta is one incremental transcript update.
type Delta struct {
	Op DeltaOp `json:"op"`
	// Start is the byte offset in the previous display where the change
	// begins. Zero for append from empty and for final.
	Start int `json:"start"`
	// Text is the appended or replacement text; for final it is the full
	// transcript.
	Text string `json:"text"`
	// Display is the full text after applying the delta.
	Display string `json:"display"`
}

// Stabilizer turns a sequence of recognition hypotheses for one segment into
// monotone display updates. Text that two successive hypotheses agree on is
// committed and never rewritten by a later hypothesis; a hypothesis that is a
// strict prefix of the current display is ignored rather than shrinking it.
//
// A Stabilizer serves a single segment's recognition and is not safe for
// concurrent use.
type Stabilizer struct {
	committed string
	display   string
}

// NewStabilizer creates a stabilizer with empty state.
func NewStabilizer() *Stabilizer {
	return &Stabilizer{}
}

// Display returns the current full display text.
func (s *Stabilizer) Display() string {
	return s.display
}

// Committed returns the prefix guaranteed not to change again.
func (s *Stabilizer) Committed() string {
	return s.committed
}

// Advance folds in the next hypothesis and returns the resulting delta.
// Final hypotheses always produce a DeltaFinal carrying the full transcript.
func (s *Stabilizer) Advance(hyp string, final bool) Delta {
	prev := s.display

	if final {
		text := hyp
		if len(text) < len(s.committed) {
			text = s.committed
		}
		s.display = text
		s.committed = text
		return Delta{Op: DeltaFinal, Text: text, Display: text}
	}

	if hyp == prev {
		return Delta{Op: DeltaNone, Display: prev}
	}

	// A shorter hypothesis that only removes tail text is treated as model
	// churn; the longer display stands until contradicted.
	if len(hyp) < len(prev) && prev[:len(hyp)] == hyp {
		return Delta{Op: DeltaNone, Display: prev}
	}

	split := commonPrefixLen(prev, hyp)
	if split < len(s.committed) {
		split = len(s.committed)
	}
	if split > len(hyp) {
		// The hypothesis contradicts committed text; keep what stands.
		return Delta{Op: DeltaNone, Display: prev}
	}

	merged := prev[:split] + hyp[split:]
	if merged == prev {
		return Delta{Op: DeltaNone, Display: prev}
	}

	var d Delta
	if split == len(prev) {
		d = Delta{Op: DeltaAppend, Start: split, Text: merged[split:], Display: merged}
	} else {
		d = Delta{Op: DeltaReplaceTail, Start: split, Text: merged[split:], Display: merged}
	}

	// Text both hypotheses agree on is now committed.
	agree := commonPrefixLen(prev, merged)
	if agree > len(s.committed) {
		s.committed = merged[:agree]
	}
	s.display = merged

	return d
}

// Reset clears all state for reuse on the next segment.
func (s *Stabilizer) Reset() {
	s.committed = ""
	s.display = ""
}

// commonPrefixLen returns the length in bytes of the longest common prefix of
// a and b, backed off to a rune boundary so multi-byte characters never split.
func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	i := 0
	for i < n && a[i] == b[i] {
		i++
	}

	for i > 0 && i < len(a) && !utf8.RuneStart(a[i]) {
		i--
	}

	return i
}
