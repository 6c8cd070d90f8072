// Package tracker holds the per-result checklist and voice state.
package tracker

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/resolve-ai/internal/client/voice"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
)

var (
	ErrStepOutOfRange = eris.New("step index out of range")
	ErrUnavailable    = eris.New("voice feature unavailable")
	ErrClosed         = eris.New("tracker closed")
)

// Command is a recognized voice command.
type Command int

const (
	CmdNone Command = iota
	CmdNext
	CmdBack
	CmdStop
)

func (c Command) String() string {
	switch c {
	case CmdNext:
		return "next"
	case CmdBack:
		return "back"
	case CmdStop:
		return "stop"
	}
	return "none"
}

// ParseCommand matches by substring, first hit wins: next, back/previous, stop.
func ParseCommand(transcript string) Command {
	t := strings.ToLower(strings.TrimSpace(transcript))
	switch {
	case strings.Contains(t, "next"):
		return CmdNext
	case strings.Contains(t, "back"), strings.Contains(t, "previous"):
		return CmdBack
	case strings.Contains(t, "stop"):
		return CmdStop
	}
	return CmdNone
}

// Tracker is safe for concurrent use. OnChange, when set, is called after
// every state change without any lock held.
type Tracker struct {
	OnChange func()

	analysis repair.Analysis
	steps    []string
	caps     voice.Capabilities
	log      *zap.Logger

	mu           sync.Mutex
	done         map[int]struct{}
	speaking     bool
	speakGen     int
	speakCancel  context.CancelFunc
	listening    bool
	listenCancel context.CancelFunc
	listenDone   chan struct{}
	closed       bool
}

// New loads a result. completed is typically restored from history; indices
// outside the actionable steps are dropped.
func New(a repair.Analysis, completed []int, caps voice.Capabilities, logger *zap.Logger) *Tracker {
	if caps == nil {
		caps = voice.None
	}
	if logger == nil {
		logger = zap.L()
	}
	t := &Tracker{
		analysis: a,
		steps:    a.ActionableSteps(),
		caps:     caps,
		log:      logger,
		done:     map[int]struct{}{},
	}
	for _, i := range completed {
		if i >= 0 && i < len(t.steps) {
			t.done[i] = struct{}{}
		}
	}
	return t
}

func (t *Tracker) Analysis() repair.Analysis { return t.analysis }

// Steps returns the actionable steps; empty for High danger results.
func (t *Tracker) Steps() []string { return append([]string(nil), t.steps...) }

func (t *Tracker) Total() int { return len(t.steps) }

func (t *Tracker) changed() {
	if f := t.OnChange; f != nil {
		f()
	}
}

// Completed returns completed indices in ascending order.
func (t *Tracker) Completed() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedLocked()
}

func (t *Tracker) completedLocked() []int {
	out := make([]int, 0, len(t.done))
	for i := range t.done {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (t *Tracker) IsDone(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.done[i]
	return ok
}

// NextStep is the lowest incomplete index. It is a highlight, not a gate.
func (t *Tracker) NextStep() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextLocked()
}

func (t *Tracker) nextLocked() (int, bool) {
	for i := range t.steps {
		if _, ok := t.done[i]; !ok {
			return i, true
		}
	}
	return 0, false
}

// Progress is round(100*done/total), 0 when there are no steps.
func (t *Tracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.steps) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(len(t.done)) / float64(len(t.steps))))
}

// Toggle flips one step regardless of the others.
func (t *Tracker) Toggle(i int) error {
	t.mu.Lock()
	if i < 0 || i >= len(t.steps) {
		t.mu.Unlock()
		return eris.Wrapf(ErrStepOutOfRange, "step %d of %d", i, len(t.steps))
	}
	if _, ok := t.done[i]; ok {
		delete(t.done, i)
	} else {
		t.done[i] = struct{}{}
	}
	t.mu.Unlock()
	t.changed()
	return nil
}

// Advance completes the next incomplete step.
func (t *Tracker) Advance() bool {
	t.mu.Lock()
	i, ok := t.nextLocked()
	if ok {
		t.done[i] = struct{}{}
	}
	t.mu.Unlock()
	if ok {
		t.changed()
	}
	return ok
}

// Retreat un-marks the highest completed step.
func (t *Tracker) Retreat() bool {
	t.mu.Lock()
	highest := -1
	for i := range t.done {
		if i > highest {
			highest = i
		}
	}
	if highest >= 0 {
		delete(t.done, highest)
	}
	t.mu.Unlock()
	if highest >= 0 {
		t.changed()
	}
	return highest >= 0
}

// ApplyTranscript maps a heard utterance to a command and applies it.
func (t *Tracker) ApplyTranscript(text string) Command {
	cmd := ParseCommand(text)
	switch cmd {
	case CmdNext:
		t.Advance()
	case CmdBack:
		t.Retreat()
	case CmdStop:
		t.stopListening(false)
	}
	return cmd
}

// NarrationText is what the toggle reads aloud.
func (t *Tracker) NarrationText() string {
	a := t.analysis
	if a.IsHighDanger() {
		referral := strings.TrimSpace(a.ProfessionalReferral)
		if referral == "" {
			referral = "a professional"
		}
		return "DANGER. " + sentence(a.SafetyWarning) + " Contact " + sentence(referral)
	}
	text := "Starting repair for " + sentence(a.ObjectName) + " " + sentence(a.Reasoning)
	if len(t.steps) > 0 {
		text += " Step 1: " + t.steps[0]
	}
	return strings.TrimSpace(text)
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".")
	return s + "."
}

func (t *Tracker) Speaking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speaking
}

// ToggleNarration cancels playback when speaking, otherwise starts it.
func (t *Tracker) ToggleNarration() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.speaking {
		t.speakCancel()
		t.speaking = false
		t.speakGen++
		t.mu.Unlock()
		t.changed()
		return nil
	}
	synth, ok := t.caps.Synthesizer()
	if !ok {
		t.mu.Unlock()
		return ErrUnavailable
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.speaking = true
	t.speakGen++
	gen := t.speakGen
	t.speakCancel = cancel
	text := t.NarrationText()
	t.mu.Unlock()
	t.changed()

	go func() {
		err := synth.Speak(ctx, text)
		if err != nil && ctx.Err() == nil {
			t.log.Warn("narration failed", zap.Error(err))
		}
		t.mu.Lock()
		current := t.speakGen == gen
		if current {
			t.speaking = false
		}
		t.mu.Unlock()
		cancel()
		if current {
			t.changed()
		}
	}()
	return nil
}

func (t *Tracker) Listening() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listening
}

// StartListening starts the background command loop. It runs until
// StopListening, a "stop" utterance, or Close.
func (t *Tracker) StartListening() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.listening {
		t.mu.Unlock()
		return nil
	}
	rec, ok := t.caps.Recognizer()
	if !ok {
		t.mu.Unlock()
		return ErrUnavailable
	}
	ctx, cancel := context.WithCancel(context.Background())
	transcripts, err := rec.Listen(ctx)
	if err != nil {
		cancel()
		t.mu.Unlock()
		return err
	}
	done := make(chan struct{})
	t.listening = true
	t.listenCancel = cancel
	t.listenDone = done
	t.mu.Unlock()
	t.changed()

	go func() {
		defer close(done)
		for text := range transcripts {
			if t.ApplyTranscript(text) == CmdStop {
				return
			}
		}
		// source ended on its own
		if ctx.Err() == nil {
			t.stopListening(false)
		}
	}()
	return nil
}

// StopListening stops the loop and waits for it to exit.
func (t *Tracker) StopListening() { t.stopListening(true) }

func (t *Tracker) stopListening(wait bool) {
	t.mu.Lock()
	if !t.listening {
		done := t.listenDone
		t.mu.Unlock()
		if wait && done != nil {
			<-done
		}
		return
	}
	t.listening = false
	t.listenCancel()
	done := t.listenDone
	t.mu.Unlock()
	t.changed()
	if wait {
		<-done
	}
}

// Close stops narration and listening. Safe to call more than once.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.speaking {
		t.speakCancel()
		t.speaking = false
		t.speakGen++
	}
	t.mu.Unlock()
	t.StopListening()
}
