package console

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/haivivi/rtconsole/pkg/buffer"
	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

// Sink receives every event added to a Store.
type Sink interface {
	// Reset marks the start of a new history.
	Reset() error

	// Record persists one event.
	Record(ev *rt.Event) error
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Capacity bounds the in-memory history. When positive, the oldest event
	// is evicted once Capacity events are held. Zero keeps every event.
	Capacity int

	// Sink, if set, receives every prepended event regardless of Capacity.
	Sink Sink

	// Logger reports sink failures. Default: slog.Default().
	Logger *slog.Logger
}

// Store is the event history of a session, most recent first.
type Store struct {
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	ring     *buffer.RingBuffer[*rt.Event] // bounded history
	events   []*rt.Event                   // unbounded history, oldest first
	pending  []*rt.Event                   // sink writes in order; nil marks a reset
	flushing bool
}

// NewStore creates an empty Store.
func NewStore(opts StoreOptions) *Store {
	s := &Store{
		sink:   opts.Sink,
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if opts.Capacity > 0 {
		s.ring = buffer.RingN[*rt.Event](opts.Capacity)
	}
	return s
}

// Prepend adds ev as the most recent event.
func (s *Store) Prepend(ev *rt.Event) {
	s.add(ev)
	s.flush()
}

// Reset empties the history.
func (s *Store) Reset() {
	s.clear()
	s.flush()
}

// add updates the history and queues the sink write; flush performs it.
func (s *Store) add(ev *rt.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring != nil {
		s.ring.Add(ev)
	} else {
		s.events = append(s.events, ev)
	}
	if s.sink != nil {
		s.pending = append(s.pending, ev)
	}
}

func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring != nil {
		s.ring.Reset()
	} else {
		s.events = nil
	}
	if s.sink != nil {
		s.pending = append(s.pending, nil)
	}
}

// flush hands queued writes to the sink in order, unless another goroutine
// already is. The sink is called without s.mu held.
func (s *Store) flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	for len(s.pending) > 0 {
		ev := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.mu.Unlock()

		if ev == nil {
			if err := s.sink.Reset(); err != nil {
				s.logger.Error("failed to start archive run", "error", err)
			}
		} else if err := s.sink.Record(ev); err != nil {
			s.logger.Error("failed to archive event", "type", ev.Type, "error", err)
		}

		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}

// Events returns a copy of the history, most recent first.
func (s *Store) Events() []*rt.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring != nil {
		return s.ring.Backward()
	}
	out := slices.Clone(s.events)
	slices.Reverse(out)
	return out
}

// Len returns the number of events held in memory.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring != nil {
		return s.ring.Len()
	}
	return len(s.events)
}

// Capacity returns the bound of the in-memory history; zero means unbounded.
func (s *Store) Capacity() int {
	if s.ring == nil {
		return 0
	}
	return s.ring.Cap()
}

// Evicted returns how many events a bounded store has dropped.
func (s *Store) Evicted() int64 {
	if s.ring == nil {
		return 0
	}
	return s.ring.Evicted()
}
