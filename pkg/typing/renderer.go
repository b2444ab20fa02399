package typing

import (
	"context"
	"time"

	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/go-go-golems/datalens/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type State int

const (
	StateIdle State = iota
	StateRevealing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRevealing:
		return "revealing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

var ErrRevealInProgress = errors.New("typing: a reveal is already in progress")

// ChunkFunc decides how many runes the next tick reveals.
type ChunkFunc func(total, remaining int) int

// DefaultChunk reveals longer texts in bigger chunks so that a reveal takes
// at most a few hundred ticks whatever the length.
func DefaultChunk(total, remaining int) int {
	switch {
	case total <= 80:
		return 1
	case total <= 400:
		return 2
	case total <= 1200:
		return 4
	case total <= 3000:
		return 8
	default:
		return (total + 299) / 300
	}
}

// Policy controls how fast a reply is revealed.
type Policy struct {
	BaseDelay     time.Duration
	SentencePause time.Duration
	Chunk         ChunkFunc
}

func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:     15 * time.Millisecond,
		SentencePause: 150 * time.Millisecond,
		Chunk:         DefaultChunk,
	}
}

func (p Policy) chunk(total, remaining int) int {
	f := p.Chunk
	if f == nil {
		f = DefaultChunk
	}
	n := f(total, remaining)
	if n < 1 {
		n = 1
	}
	if n > remaining {
		n = remaining
	}
	return n
}

// Step describes the renderer after a transition. Delay is how long the
// driver waits before the next Tick; Scroll asks the view to follow the
// newest content.
type Step struct {
	Timestamp time.Time
	State     State
	Cursor    int
	Total     int
	Delay     time.Duration
	Scroll    bool
}

func (s Step) Done() bool {
	return s.State == StateDone
}

// Renderer reveals one assistant reply at a time into a conversation store.
// It never schedules anything itself: a driver calls Tick after each Step's
// Delay, which keeps the machine testable without timers.
type Renderer struct {
	store  *conversation.Store
	policy Policy

	state   State
	ts      time.Time
	raw     string
	display string
	runes   []rune
	cursor  int
}

// NewRenderer creates an idle renderer that writes reveal progress into store,
// pacing chunks according to policy.
func NewRenderer(store *conversation.Store, policy Policy) *Renderer {
	return &Renderer{
		store:  store,
		policy: policy,
		state:  StateIdle,
	}
}

// State reports where the renderer is in its idle, revealing, done cycle.
func (r *Renderer) State() State {
	return r.state
}

// Active returns the timestamp of the message being revealed.
func (r *Renderer) Active() (time.Time, bool) {
	if r.state != StateRevealing {
		return time.Time{}, false
	}
	return r.ts, true
}

// Start appends a revealing placeholder for display and returns the first
// step. raw is stored as the message content once the reveal completes.
func (r *Renderer) Start(raw, display string, cs []charts.Chart) (Step, error) {
	if r.state == StateRevealing {
		return Step{}, ErrRevealInProgress
	}

	ts, err := r.store.Append(conversation.Message{
		Role:      conversation.RoleAssistant,
		Charts:    cs,
		Revealing: true,
	})
	if err != nil {
		return Step{}, errors.Wrap(err, "append reveal placeholder")
	}

	r.state = StateRevealing
	r.ts = ts
	r.raw = raw
	r.display = display
	r.runes = []rune(display)
	r.cursor = 0

	log.Debug().Time("timestamp", ts).Int("runes", len(r.runes)).Msg("typing: reveal started")

	if len(r.runes) == 0 {
		return r.finish(), nil
	}
	return Step{
		Timestamp: ts,
		State:     StateRevealing,
		Total:     len(r.runes),
		Scroll:    true,
	}, nil
}

// Tick reveals the next chunk.
func (r *Renderer) Tick() Step {
	if r.state != StateRevealing {
		return Step{Timestamp: r.ts, State: r.state, Cursor: r.cursor, Total: len(r.runes)}
	}

	total := len(r.runes)
	r.cursor += r.policy.chunk(total, total-r.cursor)
	if r.cursor >= total {
		return r.finish()
	}

	partial := string(r.runes[:r.cursor])
	if !r.store.UpdateByTimestamp(r.ts, conversation.Patch{DisplayContent: &partial}) {
		log.Warn().Time("timestamp", r.ts).Msg("typing: placeholder disappeared, abandoning reveal")
		r.state = StateIdle
		return Step{Timestamp: r.ts, State: StateIdle, Cursor: r.cursor, Total: total}
	}

	delay := r.policy.BaseDelay
	if isSentenceEnd(r.runes[r.cursor-1]) {
		delay = r.policy.SentencePause
	}
	return Step{
		Timestamp: r.ts,
		State:     StateRevealing,
		Cursor:    r.cursor,
		Total:     total,
		Delay:     delay,
		Scroll:    true,
	}
}

// Cancel completes an active reveal at once.
func (r *Renderer) Cancel() Step {
	if r.state != StateRevealing {
		return Step{Timestamp: r.ts, State: r.state, Cursor: r.cursor, Total: len(r.runes)}
	}
	return r.finish()
}

func (r *Renderer) finish() Step {
	r.cursor = len(r.runes)
	ok := r.store.UpdateByTimestamp(r.ts, conversation.Patch{
		Content:        &r.raw,
		DisplayContent: &r.display,
		Revealing:      conversation.Bool(false),
	})
	if !ok {
		log.Debug().Time("timestamp", r.ts).Msg("typing: finished reveal for a message no longer in the store")
	}
	r.state = StateDone
	return Step{
		Timestamp: r.ts,
		State:     StateDone,
		Cursor:    r.cursor,
		Total:     len(r.runes),
		Scroll:    true,
	}
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}

// Sleeper waits between ticks when a reveal is driven outside an event loop.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// RealSleeper waits on a timer.
var RealSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// Play drives r from first until the reveal is done, calling onStep after
// every transition. A cancelled context completes the reveal immediately and
// returns the context error.
func Play(ctx context.Context, r *Renderer, first Step, sleeper Sleeper, onStep func(Step)) error {
	step := first
	if onStep != nil {
		onStep(step)
	}
	for step.State == StateRevealing {
		if err := sleeper.Sleep(ctx, step.Delay); err != nil {
			step = r.Cancel()
			if onStep != nil {
				onStep(step)
			}
			return err
		}
		step = r.Tick()
		if onStep != nil {
			onStep(step)
		}
	}
	return nil
}
