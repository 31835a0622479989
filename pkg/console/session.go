package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

var (
	// ErrSessionStarted is returned by Start when the session is not inactive.
	ErrSessionStarted = errors.New("console: session already started")

	// ErrSessionStopped is returned by Start when Stop was called before the
	// handshake completed.
	ErrSessionStopped = errors.New("console: session stopped during negotiation")
)

// State is the lifecycle state of a Session.
type State int

const (
	Inactive State = iota
	Negotiating
	Active
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Negotiating:
		return "negotiating"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is the observable state of a Session after one mutation.
type Snapshot struct {
	State State

	// Events is the history, most recent first. Observers must not modify it.
	Events []*rt.Event

	// Version increases with every mutation.
	Version uint64
}

// Head returns the most recent event, or nil.
func (s Snapshot) Head() *rt.Event {
	if len(s.Events) == 0 {
		return nil
	}
	return s.Events[0]
}

// Oldest returns the oldest event held, or nil.
func (s Snapshot) Oldest() *rt.Event {
	if len(s.Events) == 0 {
		return nil
	}
	return s.Events[len(s.Events)-1]
}

// Sender transmits client events.
type Sender interface {
	Send(ev *rt.Event)
}

// Handle is the session surface the views drive.
type Handle interface {
	Sender
	Start(ctx context.Context) error
	Stop() error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithStore sets the event store. Default: an unbounded Store.
func WithStore(store *Store) SessionOption {
	return func(s *Session) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets the session logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session negotiates an events channel and records the events on it.
//
// All methods are safe for concurrent use. Snapshots are delivered to
// observers one at a time in mutation order; an observer may call Send, the
// resulting snapshot is delivered after the current one returns.
type Session struct {
	creds  rt.CredentialSource
	dialer rt.Dialer
	store  *Store
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	attempt uint64 // invalidates callbacks of superseded connections
	cancel  context.CancelFunc
	conn    rt.Conn
	open    bool
	version uint64

	omu     sync.Mutex
	outbox  []outgoing
	sending bool

	qmu       sync.Mutex
	queue     []Snapshot
	draining  bool
	observers []observer
	nextObs   int
}

type observer struct {
	id int
	fn func(Snapshot)
}

// outgoing is a recorded event waiting to be transmitted.
type outgoing struct {
	attempt uint64
	conn    rt.Conn
	ev      *rt.Event
	data    []byte
}

var _ Handle = (*Session)(nil)

// NewSession creates an inactive Session.
func NewSession(creds rt.CredentialSource, dialer rt.Dialer, opts ...SessionOption) *Session {
	s := &Session{
		creds:  creds,
		dialer: dialer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewStore(StoreOptions{Logger: s.logger})
	}
	return s
}

// Subscribe registers fn for every subsequent snapshot and returns a function
// that removes it.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.qmu.Lock()
	s.nextObs++
	id := s.nextObs
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.qmu.Unlock()

	return func() {
		s.qmu.Lock()
		defer s.qmu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the current history, most recent first.
func (s *Session) Events() []*rt.Event {
	return s.store.Events()
}

// Snapshot returns the current snapshot without notifying observers.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Events: s.store.Events(), Version: s.version}
}

// Start fetches a credential and dials the events channel. It returns once
// the handshake is done; the session becomes Active when the channel opens.
//
// Failures leave the session Inactive. If Stop is called before the
// handshake completes, the in-flight attempt is cancelled, any connection it
// produced is closed, and Start returns ErrSessionStopped.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Inactive {
		s.mu.Unlock()
		return ErrSessionStarted
	}
	s.attempt++
	attempt := s.attempt
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.state = Negotiating
	s.enqueueLocked()
	s.mu.Unlock()
	s.drain()

	cred, err := s.creds.Credential(ctx)
	if err != nil {
		return s.failStart(attempt, fmt.Errorf("console: fetch credential: %w", err))
	}

	// Callbacks may fire as soon as Dial returns; hold them until the
	// connection is recorded.
	ready := make(chan struct{})
	conn, err := s.dialer.Dial(ctx, cred, rt.Handlers{
		OnOpen: func() {
			<-ready
			s.handleOpen(attempt)
		},
		OnMessage: func(data []byte) {
			<-ready
			s.handleMessage(attempt, data)
		},
		OnClose: func() {
			<-ready
			s.handleClose(attempt)
		},
	})
	if err != nil {
		close(ready)
		return s.failStart(attempt, fmt.Errorf("console: connect: %w", err))
	}

	s.mu.Lock()
	if s.attempt != attempt {
		s.mu.Unlock()
		close(ready)
		if err := conn.Close(); err != nil {
			s.logger.Debug("close stale connection", "error", err)
		}
		return ErrSessionStopped
	}
	s.conn = conn
	s.cancel = nil
	s.mu.Unlock()
	close(ready)

	s.logger.Info("session negotiated")
	return nil
}

// failStart returns the session to Inactive after a failed attempt.
func (s *Session) failStart(attempt uint64, err error) error {
	s.mu.Lock()
	if s.attempt != attempt {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	s.attempt++
	s.state = Inactive
	s.cancel = nil
	s.enqueueLocked()
	s.mu.Unlock()
	s.drain()

	s.logger.Error("failed to start session", "error", err)
	return err
}

// Stop closes the events channel and the connection. Later transport
// callbacks are ignored. Stop on an inactive session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == Inactive {
		s.mu.Unlock()
		return nil
	}
	conn, cancel := s.detachLocked()
	s.enqueueLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.drain()

	if conn != nil {
		if err := conn.Close(); err != nil {
			return fmt.Errorf("console: close connection: %w", err)
		}
	}
	s.logger.Info("session stopped")
	return nil
}

// detachLocked moves the session to Inactive and hands back what must be
// released outside the lock.
func (s *Session) detachLocked() (rt.Conn, context.CancelFunc) {
	conn, cancel := s.conn, s.cancel
	s.attempt++
	s.state = Inactive
	s.conn = nil
	s.cancel = nil
	s.open = false
	return conn, cancel
}

// Send records ev as the most recent event and transmits it. An event
// without an id gets a generated one. Transmission happens outside the
// session lock in the order events were recorded; a transport error is
// logged and the event stays in the history.
//
// When the channel is not open the event is dropped with an error log;
// nothing is queued and the history is unchanged.
func (s *Session) Send(ev *rt.Event) {
	s.mu.Lock()
	if !s.open || s.conn == nil {
		s.mu.Unlock()
		s.logger.Error("failed to send message - no data channel available", "type", ev.Type)
		return
	}

	if ev.EventID == "" {
		ev.EventID = rt.NewEventID()
	}
	ev.Origin = rt.OriginClient
	data, err := json.Marshal(ev)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to encode event", "type", ev.Type, "error", err)
		return
	}
	ev.Raw = data
	s.store.add(ev)
	s.enqueueLocked()
	s.omu.Lock()
	s.outbox = append(s.outbox, outgoing{attempt: s.attempt, conn: s.conn, ev: ev, data: data})
	s.omu.Unlock()
	s.mu.Unlock()

	s.transmit()
	s.store.flush()
	s.drain()
}

// transmit writes queued events to their connections unless another
// goroutine already is. Events of a superseded connection are skipped.
func (s *Session) transmit() {
	s.omu.Lock()
	if s.sending {
		s.omu.Unlock()
		return
	}
	s.sending = true
	for len(s.outbox) > 0 {
		out := s.outbox[0]
		s.outbox[0] = outgoing{}
		s.outbox = s.outbox[1:]
		s.omu.Unlock()

		s.mu.Lock()
		stale := s.attempt != out.attempt
		s.mu.Unlock()
		if stale {
			s.logger.Debug("skipping send on closed connection", "type", out.ev.Type)
		} else if err := out.conn.Send(out.data); err != nil {
			s.logger.Error("failed to send event", "type", out.ev.Type, "error", err)
		}

		s.omu.Lock()
	}
	s.sending = false
	s.omu.Unlock()
}

func (s *Session) handleOpen(attempt uint64) {
	s.mu.Lock()
	if s.attempt != attempt || s.state != Negotiating {
		s.mu.Unlock()
		return
	}
	s.state = Active
	s.open = true
	s.store.clear()
	s.enqueueLocked()
	s.mu.Unlock()
	s.store.flush()
	s.drain()

	s.logger.Info("events channel open")
}

func (s *Session) handleMessage(attempt uint64, data []byte) {
	ev, err := rt.ParseEvent(data)
	if err != nil {
		s.logger.Error("dropping unparseable message", "error", err)
		return
	}
	ev.Origin = rt.OriginServer

	s.mu.Lock()
	if s.attempt != attempt {
		s.mu.Unlock()
		return
	}
	s.store.add(ev)
	s.enqueueLocked()
	s.mu.Unlock()
	s.store.flush()
	s.drain()

	if ev.Type == rt.EventTypeError && ev.Error != nil {
		s.logger.Warn("server error", "error", ev.Error.ToError())
	}
}

func (s *Session) handleClose(attempt uint64) {
	s.mu.Lock()
	if s.attempt != attempt {
		s.mu.Unlock()
		return
	}
	conn, cancel := s.detachLocked()
	s.enqueueLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.drain()

	s.logger.Warn("events channel closed by peer")
	if conn != nil {
		go func() {
			if err := conn.Close(); err != nil {
				s.logger.Debug("close connection", "error", err)
			}
		}()
	}
}

// enqueueLocked records a snapshot of the current state. It must be called
// with s.mu held so that queue order matches mutation order.
func (s *Session) enqueueLocked() {
	s.version++
	snap := Snapshot{
		State:   s.state,
		Events:  s.store.Events(),
		Version: s.version,
	}
	s.qmu.Lock()
	s.queue = append(s.queue, snap)
	s.qmu.Unlock()
}

// drain delivers queued snapshots unless another goroutine already is.
func (s *Session) drain() {
	s.qmu.Lock()
	if s.draining {
		s.qmu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		snap := s.queue[0]
		s.queue[0] = Snapshot{}
		s.queue = s.queue[1:]
		observers := append([]observer(nil), s.observers...)
		s.qmu.Unlock()

		for _, o := range observers {
			o.fn(snap)
		}

		s.qmu.Lock()
	}
	s.draining = false
	s.qmu.Unlock()
}
