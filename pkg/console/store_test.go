package console

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

type memorySink struct {
	mu     sync.Mutex
	resets int
	events []*rt.Event
	err    error

	// gate, if set, holds Reset until closed; entered is signalled when a
	// Reset starts waiting on it.
	gate    chan struct{}
	entered chan struct{}
}

func (m *memorySink) Reset() error {
	if m.gate != nil {
		select {
		case m.entered <- struct{}{}:
		default:
		}
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return m.err
}

func (m *memorySink) Record(ev *rt.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

func numbered(n int) []*rt.Event {
	events := make([]*rt.Event, n)
	for i := range events {
		events[i] = &rt.Event{Type: "response.text.delta", EventID: fmt.Sprintf("event_%d", i)}
	}
	return events
}

func TestStoreUnbounded(t *testing.T) {
	s := NewStore(StoreOptions{})
	for _, ev := range numbered(100) {
		s.Prepend(ev)
	}
	if s.Len() != 100 {
		t.Fatalf("Len = %d", s.Len())
	}
	events := s.Events()
	for i, ev := range events {
		if want := fmt.Sprintf("event_%d", 99-i); ev.EventID != want {
			t.Fatalf("events[%d] = %q, want %q", i, ev.EventID, want)
		}
	}
	if s.Evicted() != 0 {
		t.Errorf("Evicted = %d", s.Evicted())
	}

	s.Reset()
	if s.Len() != 0 || len(s.Events()) != 0 {
		t.Errorf("after Reset len=%d", s.Len())
	}
	if s.Capacity() != 0 {
		t.Errorf("Capacity = %d, want 0", s.Capacity())
	}
}

func TestStoreBoundedWithSink(t *testing.T) {
	sink := &memorySink{}
	s := NewStore(StoreOptions{Capacity: 5, Sink: sink, Logger: discardLogger})
	for _, ev := range numbered(12) {
		s.Prepend(ev)
	}

	events := s.Events()
	if len(events) != 5 {
		t.Fatalf("len = %d, want 5", len(events))
	}
	for i, ev := range events {
		if want := fmt.Sprintf("event_%d", 11-i); ev.EventID != want {
			t.Errorf("events[%d] = %q, want %q", i, ev.EventID, want)
		}
	}
	if s.Evicted() != 7 || s.Capacity() != 5 {
		t.Errorf("Evicted = %d, Capacity = %d", s.Evicted(), s.Capacity())
	}
	if len(sink.events) != 12 {
		t.Errorf("sink saw %d events, want 12", len(sink.events))
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len after Reset = %d", s.Len())
	}
	if sink.resets != 1 {
		t.Errorf("sink resets = %d", sink.resets)
	}
}

func TestStoreSinkErrorsDoNotBlock(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	s := NewStore(StoreOptions{Sink: sink, Logger: discardLogger})
	s.Reset()
	s.Prepend(&rt.Event{Type: "session.created"})
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStoreEventsIsCopy(t *testing.T) {
	s := NewStore(StoreOptions{})
	s.Prepend(&rt.Event{Type: "a"})
	events := s.Events()
	events[0] = &rt.Event{Type: "b"}
	if s.Events()[0].Type != "a" {
		t.Error("Events must return a copy")
	}
}
