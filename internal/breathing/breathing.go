// Package breathing runs the guided breathing exercise: an intro, then
// inhale, hold and exhale phases per breath, then a closing cue.
package breathing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"calma/backend/ai"
	"calma/backend/internal/audio"
	"calma/backend/internal/catalog"
)

var (
	// ErrInvalidBreaths is returned for a breath count the catalog does not offer.
	ErrInvalidBreaths = errors.New("unsupported number of breaths")
	// ErrRunning is returned by Start while an exercise is in progress.
	ErrRunning = errors.New("breathing exercise already running")
)

// Phase of the exercise.
type Phase string

const (
	PhaseIntro   Phase = "intro"
	PhaseInhale  Phase = "inhale"
	PhaseHold    Phase = "hold"
	PhaseExhale  Phase = "exhale"
	PhaseDone    Phase = "done"
	PhaseStopped Phase = "stopped"
	// PhaseCue carries synthesized audio for a spoken phase.
	PhaseCue Phase = "cue"
)

// Event reports progress.
type Event struct {
	Phase   Phase     `json:"phase"`
	Breath  int       `json:"breath,omitempty"`
	Total   int       `json:"total"`
	Text    string    `json:"text,omitempty"`
	Seconds int       `json:"seconds,omitempty"`
	Audio   *ai.Audio `json:"audio,omitempty"`
}

// Speaker synthesizes cues. ai.Companion satisfies it.
type Speaker interface {
	Speech(ctx context.Context, text string) (ai.Audio, bool)
}

// Exercise runs one exercise at a time. Every scheduled step checks the
// run generation first, so Stop silences steps already queued.
type Exercise struct {
	cat     *catalog.Catalog
	clock   audio.Clock
	speaker Speaker
	emit    func(Event)

	mu     sync.Mutex
	gen    uint64
	alive  bool
	total  int
	timer  audio.Timer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an exercise runner. speaker may be nil for a silent run.
func New(cat *catalog.Catalog, clock audio.Clock, speaker Speaker, emit func(Event)) *Exercise {
	if clock == nil {
		clock = audio.RealClock{}
	}
	return &Exercise{cat: cat, clock: clock, speaker: speaker, emit: emit}
}

func (e *Exercise) phaseDuration() time.Duration {
	return time.Duration(e.cat.Breathing.PhaseSeconds) * time.Second
}

// Start begins an exercise of breaths breaths.
func (e *Exercise) Start(ctx context.Context, breaths int) error {
	if !e.cat.BreathsAllowed(breaths) {
		return fmt.Errorf("%w: %d", ErrInvalidBreaths, breaths)
	}

	e.mu.Lock()
	if e.alive {
		e.mu.Unlock()
		return ErrRunning
	}
	e.gen++
	e.alive = true
	e.total = breaths
	ctx, e.cancel = context.WithCancel(ctx)
	gen := e.gen
	e.mu.Unlock()

	e.step(ctx, gen, Event{
		Phase: PhaseIntro,
		Total: breaths,
		Text:  fmt.Sprintf(e.cat.Breathing.Intro, breaths),
	}, e.phaseDuration(), func() { e.breath(ctx, gen, 1) })
	return nil
}

func (e *Exercise) breath(ctx context.Context, gen uint64, n int) {
	d := e.phaseDuration()
	secs := e.cat.Breathing.PhaseSeconds
	e.step(ctx, gen, Event{Phase: PhaseInhale, Breath: n, Total: e.total, Text: e.cat.Breathing.Inhale, Seconds: secs}, d, func() {
		e.step(ctx, gen, Event{Phase: PhaseHold, Breath: n, Total: e.total, Seconds: secs}, d, func() {
			e.step(ctx, gen, Event{Phase: PhaseExhale, Breath: n, Total: e.total, Text: e.cat.Breathing.Exhale, Seconds: secs}, d, func() {
				if n < e.total {
					e.breath(ctx, gen, n+1)
					return
				}
				e.finish(ctx, gen)
			})
		})
	})
}

func (e *Exercise) finish(ctx context.Context, gen uint64) {
	e.mu.Lock()
	if !e.live(gen) {
		e.mu.Unlock()
		return
	}
	e.alive = false
	total := e.total
	cue := e.reserveCue(e.cat.Breathing.Done)
	e.mu.Unlock()

	ev := Event{Phase: PhaseDone, Total: total, Text: e.cat.Breathing.Done}
	e.emit(ev)
	if cue {
		e.speak(ctx, gen, ev.Text)
	}
}

// step emits ev now and schedules next after d, unless the run was stopped.
func (e *Exercise) step(ctx context.Context, gen uint64, ev Event, d time.Duration, next func()) {
	e.mu.Lock()
	if !e.live(gen) {
		e.mu.Unlock()
		return
	}
	e.timer = e.clock.AfterFunc(d, next)
	cue := e.reserveCue(ev.Text)
	e.mu.Unlock()

	e.emit(ev)
	if cue {
		e.speak(ctx, gen, ev.Text)
	}
}

// reserveCue counts a pending cue in the wait group. Caller holds the lock
// and has checked the run is live.
func (e *Exercise) reserveCue(text string) bool {
	if e.speaker == nil || text == "" {
		return false
	}
	e.wg.Add(1)
	return true
}

// live reports whether gen is the running exercise. Caller holds the lock.
func (e *Exercise) live(gen uint64) bool {
	return e.alive && e.gen == gen
}

// speak synthesizes text in the background. The cue must have been reserved.
func (e *Exercise) speak(ctx context.Context, gen uint64, text string) {
	go func() {
		defer e.wg.Done()
		a, ok := e.speaker.Speech(ctx, text)
		if !ok || ctx.Err() != nil {
			return
		}
		e.mu.Lock()
		stale := e.gen != gen
		total := e.total
		e.mu.Unlock()
		if !stale {
			e.emit(Event{Phase: PhaseCue, Total: total, Text: text, Audio: &a})
		}
	}()
}

// Running reports whether an exercise is in progress.
func (e *Exercise) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alive
}

// Stop cancels the exercise immediately. Pending steps and cue synthesis
// are dropped.
func (e *Exercise) Stop() {
	e.mu.Lock()
	wasAlive := e.alive
	e.alive = false
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	total := e.total
	e.mu.Unlock()

	if wasAlive {
		e.emit(Event{Phase: PhaseStopped, Total: total})
	}
}

// Wait blocks until pending cue synthesis has finished.
func (e *Exercise) Wait() {
	e.wg.Wait()
}
