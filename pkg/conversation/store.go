package conversation

import (
	"time"

	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation. Timestamp is unique within a
// store and is the only handle for updating a message after it was appended.
type Message struct {
	Role           Role
	Content        string
	DisplayContent string
	Timestamp      time.Time
	Charts         []charts.Chart
	Revealing      bool
}

// Text is what a transcript should show for the message right now.
func (m Message) Text() string {
	if m.Revealing || m.DisplayContent != "" {
		return m.DisplayContent
	}
	return m.Content
}

// Patch lists the fields UpdateByTimestamp may overwrite. Nil fields are
// retained. Charts are fixed at creation and cannot be patched.
type Patch struct {
	Content        *string
	DisplayContent *string
	Revealing      *bool
}

func String(s string) *string { return &s }
func Bool(b bool) *bool       { return &b }

var (
	ErrDuplicateTimestamp = errors.New("conversation: timestamp already used")
	ErrRevealInProgress   = errors.New("conversation: another message is already revealing")
)

// Store is the ordered message log of one conversation plus its pending
// visualization slot. It is owned by a single event loop and is not safe
// for concurrent use. Every mutation swaps in a fresh slice, so snapshots
// returned by Messages stay valid.
type Store struct {
	messages      []Message
	visualization []charts.Chart
	version       uint64
	vizVersion    uint64

	now  func() time.Time
	last time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now as the source for NextTimestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store. Timestamps come from time.Now unless
// WithClock is given.
func NewStore(opts ...Option) *Store {
	s := &Store{
		messages: []Message{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextTimestamp returns a creation instant strictly after every instant
// this store handed out before.
func (s *Store) NextTimestamp() time.Time {
	ts := s.now()
	if !ts.After(s.last) {
		ts = s.last.Add(time.Nanosecond)
	}
	s.last = ts
	return ts
}

func (s *Store) observe(ts time.Time) {
	if ts.After(s.last) {
		s.last = ts
	}
}

func (s *Store) indexOf(ts time.Time) int {
	for i := range s.messages {
		if s.messages[i].Timestamp.Equal(ts) {
			return i
		}
	}
	return -1
}

// Append adds m at the end of the log. A zero timestamp is replaced by
// NextTimestamp.
func (s *Store) Append(m Message) (time.Time, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = s.NextTimestamp()
	}
	if s.indexOf(m.Timestamp) >= 0 {
		return time.Time{}, ErrDuplicateTimestamp
	}
	if m.Revealing {
		if _, ok := s.Revealing(); ok {
			return time.Time{}, ErrRevealInProgress
		}
	}

	next := make([]Message, len(s.messages), len(s.messages)+1)
	copy(next, s.messages)
	s.messages = append(next, m)
	s.observe(m.Timestamp)
	s.version++
	return m.Timestamp, nil
}

// UpdateByTimestamp merges patch into the message created at ts. It reports
// false and leaves the store untouched when no message matches.
func (s *Store) UpdateByTimestamp(ts time.Time, patch Patch) bool {
	idx := s.indexOf(ts)
	if idx < 0 {
		log.Debug().Time("timestamp", ts).Msg("conversation: update for unknown message ignored")
		return false
	}

	updated := s.messages[idx]
	if patch.Content != nil {
		updated.Content = *patch.Content
	}
	if patch.DisplayContent != nil {
		updated.DisplayContent = *patch.DisplayContent
	}
	if patch.Revealing != nil {
		if *patch.Revealing && !updated.Revealing {
			if _, ok := s.Revealing(); ok {
				log.Warn().Time("timestamp", ts).Msg("conversation: refusing second revealing message")
				return false
			}
		}
		updated.Revealing = *patch.Revealing
	}

	next := make([]Message, len(s.messages))
	copy(next, s.messages)
	next[idx] = updated
	s.messages = next
	s.version++
	return true
}

// Messages returns the current log. Callers must not modify it.
func (s *Store) Messages() []Message {
	return s.messages
}

func (s *Store) Len() int {
	return len(s.messages)
}

// Get returns the message created at ts.
func (s *Store) Get(ts time.Time) (Message, bool) {
	idx := s.indexOf(ts)
	if idx < 0 {
		return Message{}, false
	}
	return s.messages[idx], true
}

// Last returns the most recent message with the given role.
func (s *Store) Last(role Role) (Message, bool) {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == role {
			return s.messages[i], true
		}
	}
	return Message{}, false
}

// Revealing returns the message currently being typed out, if any. At most
// one message is revealing at a time.
func (s *Store) Revealing() (Message, bool) {
	for _, m := range s.messages {
		if m.Revealing {
			return m, true
		}
	}
	return Message{}, false
}

// Reset replaces the whole log. Messages without a timestamp get one; a
// message reusing an earlier timestamp or revealing alongside another one is
// rejected and the store is left unchanged.
func (s *Store) Reset(msgs ...Message) error {
	next := make([]Message, 0, len(msgs))
	seen := map[int64]bool{}
	revealing := false
	last := s.last
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			ts := s.now()
			if !ts.After(last) {
				ts = last.Add(time.Nanosecond)
			}
			m.Timestamp = ts
		}
		key := m.Timestamp.UnixNano()
		if seen[key] {
			return ErrDuplicateTimestamp
		}
		seen[key] = true
		if m.Revealing {
			if revealing {
				return ErrRevealInProgress
			}
			revealing = true
		}
		if m.Timestamp.After(last) {
			last = m.Timestamp
		}
		next = append(next, m)
	}
	s.messages = next
	s.last = last
	s.version++
	return nil
}

// PublishCharts overwrites the visualization slot.
func (s *Store) PublishCharts(c []charts.Chart) {
	next := make([]charts.Chart, len(c))
	copy(next, c)
	s.visualization = next
	s.version++
	s.vizVersion++
}

// Visualization returns the charts of the most recent reply that had any.
func (s *Store) Visualization() []charts.Chart {
	return s.visualization
}

// ClearVisualization empties the chart slot, as a new upload does.
func (s *Store) ClearVisualization() {
	s.visualization = nil
	s.version++
	s.vizVersion++
}

// VisualizationVersion increases whenever the visualization slot is
// written, even with the same charts.
func (s *Store) VisualizationVersion() uint64 {
	return s.vizVersion
}

// Version increases with every mutation.
func (s *Store) Version() uint64 {
	return s.version
}
