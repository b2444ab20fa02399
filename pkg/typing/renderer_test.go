package typing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/go-go-golems/datalens/pkg/conversation"
	"github.com/stretchr/testify/require"
)

// virtualClock records requested sleeps instead of waiting.
type virtualClock struct {
	slept []time.Duration
}

func (c *virtualClock) Sleep(ctx context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return ctx.Err()
}

func (c *virtualClock) total() time.Duration {
	var sum time.Duration
	for _, d := range c.slept {
		sum += d
	}
	return sum
}

func runToDone(t *testing.T, r *Renderer, first Step) Step {
	t.Helper()
	step := first
	for i := 0; step.State == StateRevealing; i++ {
		require.Less(t, i, 100000, "reveal did not terminate")
		step = r.Tick()
	}
	return step
}

func TestRenderer_ReachesDoneForAnyLength(t *testing.T) {
	lengths := []int{0, 1, 2, 79, 80, 81, 400, 401, 1500, 3001, 10000}
	policies := map[string]ChunkFunc{
		"default": DefaultChunk,
		"one":     func(int, int) int { return 1 },
		"huge":    func(int, int) int { return 1 << 20 },
		"zero":    func(int, int) int { return 0 },
	}

	for name, chunk := range policies {
		for _, n := range lengths {
			store := conversation.NewStore()
			r := NewRenderer(store, Policy{Chunk: chunk})
			text := strings.Repeat("ab. ", n/4+1)[:n]

			first, err := r.Start("raw:"+text, text, nil)
			require.NoError(t, err, "%s/%d", name, n)
			last := runToDone(t, r, first)

			require.True(t, last.Done(), "%s/%d", name, n)
			require.Equal(t, StateDone, r.State())
			msgs := store.Messages()
			require.Len(t, msgs, 1)
			require.Equal(t, text, msgs[0].DisplayContent)
			require.Equal(t, "raw:"+text, msgs[0].Content)
			require.False(t, msgs[0].Revealing)
		}
	}
}

func TestRenderer_PlaceholderAndPartialContent(t *testing.T) {
	store := conversation.NewStore()
	r := NewRenderer(store, Policy{Chunk: func(int, int) int { return 2 }})
	c := []charts.Chart{{Title: "c", Kind: charts.KindPie}}

	first, err := r.Start("raw", "hello", c)
	require.NoError(t, err)
	require.Equal(t, StateRevealing, first.State)
	require.True(t, first.Scroll)

	m, ok := store.Get(first.Timestamp)
	require.True(t, ok)
	require.True(t, m.Revealing)
	require.Empty(t, m.DisplayContent)
	require.Equal(t, c, m.Charts)

	step := r.Tick()
	require.Equal(t, 2, step.Cursor)
	m, _ = store.Get(first.Timestamp)
	require.Equal(t, "he", m.DisplayContent)
	require.True(t, m.Revealing)

	step = r.Tick()
	require.Equal(t, 4, step.Cursor)
	step = r.Tick()
	require.True(t, step.Done())
	require.True(t, step.Scroll)
}

func TestRenderer_SentencePause(t *testing.T) {
	store := conversation.NewStore()
	r := NewRenderer(store, Policy{
		BaseDelay:     10 * time.Millisecond,
		SentencePause: 200 * time.Millisecond,
		Chunk:         func(int, int) int { return 1 },
	})

	_, err := r.Start("Hi. Yes", "Hi. Yes", nil)
	require.NoError(t, err)

	require.Equal(t, 10*time.Millisecond, r.Tick().Delay)  // "H"
	require.Equal(t, 10*time.Millisecond, r.Tick().Delay)  // "Hi"
	require.Equal(t, 200*time.Millisecond, r.Tick().Delay) // "Hi."
	require.Equal(t, 10*time.Millisecond, r.Tick().Delay)  // "Hi. "
}

func TestRenderer_RejectsOverlappingStart(t *testing.T) {
	store := conversation.NewStore()
	r := NewRenderer(store, DefaultPolicy())

	first, err := r.Start("one", "first reply", nil)
	require.NoError(t, err)
	r.Tick()

	_, err = r.Start("two", "second reply", nil)
	require.ErrorIs(t, err, ErrRevealInProgress)
	require.Equal(t, 1, store.Len())

	m, _ := store.Get(first.Timestamp)
	require.True(t, m.Revealing)
	require.Equal(t, "f", m.DisplayContent)

	runToDone(t, r, Step{State: StateRevealing})
	second, err := r.Start("two", "second reply", nil)
	require.NoError(t, err)
	require.NotEqual(t, first.Timestamp, second.Timestamp)
	require.Equal(t, 2, store.Len())
}

func TestRenderer_AtMostOneRevealingDuringSession(t *testing.T) {
	store := conversation.NewStore()
	r := NewRenderer(store, DefaultPolicy())

	countRevealing := func() int {
		n := 0
		for _, m := range store.Messages() {
			if m.Revealing {
				n++
			}
		}
		return n
	}

	for i := 0; i < 5; i++ {
		_, err := store.Append(conversation.Message{Role: conversation.RoleUser, Content: "q"})
		require.NoError(t, err)
		step, err := r.Start("a", "answer number one. and two!", nil)
		require.NoError(t, err)
		for step.State == StateRevealing {
			require.LessOrEqual(t, countRevealing(), 1)
			step = r.Tick()
		}
		require.Equal(t, 0, countRevealing())
	}
}

func TestRenderer_CancelFinalizes(t *testing.T) {
	store := conversation.NewStore()
	r := NewRenderer(store, DefaultPolicy())

	first, err := r.Start("raw text", "display text", nil)
	require.NoError(t, err)
	r.Tick()

	step := r.Cancel()
	require.True(t, step.Done())
	m, _ := store.Get(first.Timestamp)
	require.Equal(t, "display text", m.DisplayContent)
	require.Equal(t, "raw text", m.Content)
	require.False(t, m.Revealing)

	require.True(t, r.Cancel().Done())
}

func TestRenderer_PlaceholderRemovedByReset(t *testing.T) {
	store := conversation.NewStore()
	r := NewRenderer(store, DefaultPolicy())

	_, err := r.Start("raw", "a fairly long reply", nil)
	require.NoError(t, err)
	require.NoError(t, store.Reset(conversation.Message{Role: conversation.RoleAssistant, Content: "welcome"}))

	step := r.Tick()
	require.Equal(t, StateIdle, step.State)
	require.Equal(t, 1, store.Len())

	_, err = r.Start("raw", "next", nil)
	require.NoError(t, err)
}

func TestRenderer_MultiByteRunesNeverSplit(t *testing.T) {
	store := conversation.NewStore()
	r := NewRenderer(store, Policy{Chunk: func(int, int) int { return 1 }})

	text := "héllo 世界"
	first, err := r.Start(text, text, nil)
	require.NoError(t, err)
	step := first
	for step.State == StateRevealing {
		step = r.Tick()
		m, _ := store.Get(first.Timestamp)
		require.True(t, strings.HasPrefix(text, m.DisplayContent))
	}
	require.Equal(t, len([]rune(text)), step.Cursor)
}

func TestDefaultChunk_BoundsTickCount(t *testing.T) {
	for _, n := range []int{10, 500, 2000, 5000, 50000} {
		ticks := 0
		for remaining := n; remaining > 0; ticks++ {
			remaining -= DefaultChunk(n, remaining)
		}
		require.LessOrEqual(t, ticks, 400, "length %d", n)
	}
	require.Less(t, DefaultChunk(50, 50), DefaultChunk(5000, 5000))
}

func TestPlay_WithVirtualClock(t *testing.T) {
	store := conversation.NewStore()
	r := NewRenderer(store, Policy{
		BaseDelay:     time.Millisecond,
		SentencePause: time.Second,
		Chunk:         func(int, int) int { return 1 },
	})
	clock := &virtualClock{}

	first, err := r.Start("raw", "Ok. Go", nil)
	require.NoError(t, err)

	var steps []Step
	require.NoError(t, Play(context.Background(), r, first, clock, func(s Step) { steps = append(steps, s) }))

	require.True(t, steps[len(steps)-1].Done())
	require.Len(t, steps, 7) // first + 6 runes
	require.Equal(t, time.Second+4*time.Millisecond, clock.total())
	for _, s := range steps {
		require.True(t, s.Scroll)
	}
	m, _ := store.Get(first.Timestamp)
	require.Equal(t, "Ok. Go", m.DisplayContent)
}

func TestPlay_CancelledContextFinalizes(t *testing.T) {
	store := conversation.NewStore()
	r := NewRenderer(store, DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first, err := r.Start("raw", "some text to reveal", nil)
	require.NoError(t, err)

	err = Play(ctx, r, first, &virtualClock{}, nil)
	require.ErrorIs(t, err, context.Canceled)
	m, _ := store.Get(first.Timestamp)
	require.False(t, m.Revealing)
	require.Equal(t, "some text to reveal", m.DisplayContent)
}
