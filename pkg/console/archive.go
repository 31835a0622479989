package console

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/rtconsole/pkg/kv"
	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

// Archive keys:
//
//	run:<run>                 -> RunInfo
//	event:<run>:<seq>         -> Record
const (
	runPrefix   = "run"
	eventPrefix = "event"
)

// Record is one archived event.
type Record struct {
	Run     string    `msgpack:"run"`
	Seq     uint64    `msgpack:"seq"`
	Time    time.Time `msgpack:"time"`
	Origin  string    `msgpack:"origin"`
	Type    string    `msgpack:"type"`
	EventID string    `msgpack:"event_id,omitempty"`
	Raw     []byte    `msgpack:"raw"`
}

// Event decodes the archived event and restores its origin.
func (r *Record) Event() (*rt.Event, error) {
	ev, err := rt.ParseEvent(r.Raw)
	if err != nil {
		return nil, err
	}
	ev.Origin = rt.Origin(r.Origin)
	return ev, nil
}

// RunInfo describes one archived session history.
type RunInfo struct {
	ID      string    `msgpack:"id"`
	Started time.Time `msgpack:"started"`
	Last    time.Time `msgpack:"last,omitempty"`
	Events  uint64    `msgpack:"events"`
	Bytes   uint64    `msgpack:"bytes"`
}

// Span is the time between the start of the run and its last record.
func (r RunInfo) Span() time.Duration {
	if r.Last.IsZero() {
		return 0
	}
	return r.Last.Sub(r.Started)
}

// Archive persists event histories, one run per session, in a kv.Store.
// It implements Sink.
type Archive struct {
	store kv.Store
	now   func() time.Time

	mu  sync.Mutex
	run *RunInfo
}

var _ Sink = (*Archive)(nil)

// NewArchive creates an archive over store.
func NewArchive(store kv.Store) *Archive {
	return &Archive{store: store, now: time.Now}
}

// Reset starts a new run.
func (a *Archive) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.beginLocked()
}

func (a *Archive) beginLocked() error {
	now := a.now().UTC()
	run := &RunInfo{
		ID:      now.Format("20060102T150405") + "-" + uuid.NewString()[:8],
		Started: now,
	}
	if err := a.putRunLocked(run); err != nil {
		return err
	}
	a.run = run
	return nil
}

func (a *Archive) putRunLocked(run *RunInfo) error {
	data, err := msgpack.Marshal(run)
	if err != nil {
		return fmt.Errorf("console: encode run: %w", err)
	}
	return a.store.Set(context.Background(), kv.Key{runPrefix, run.ID}, data)
}

// Record appends ev to the current run, starting one if needed.
func (a *Archive) Record(ev *rt.Event) error {
	raw, err := ev.JSON()
	if err != nil {
		return fmt.Errorf("console: encode event: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.run == nil {
		if err := a.beginLocked(); err != nil {
			return err
		}
	}

	rec := Record{
		Run:     a.run.ID,
		Seq:     a.run.Events + 1,
		Time:    a.now().UTC(),
		Origin:  string(ev.Direction()),
		Type:    ev.Type,
		EventID: ev.EventID,
		Raw:     raw,
	}
	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("console: encode record: %w", err)
	}
	if err := a.store.Set(context.Background(), eventKey(rec.Run, rec.Seq), data); err != nil {
		return err
	}
	a.run.Events = rec.Seq
	a.run.Bytes += uint64(len(raw))
	a.run.Last = rec.Time
	return a.putRunLocked(a.run)
}

func eventKey(run string, seq uint64) kv.Key {
	return kv.Key{eventPrefix, run, fmt.Sprintf("%010d", seq)}
}

// Current returns the id of the run being recorded, or "".
func (a *Archive) Current() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.run == nil {
		return ""
	}
	return a.run.ID
}

// Runs lists the archived runs, oldest first.
func (a *Archive) Runs(ctx context.Context) ([]RunInfo, error) {
	var runs []RunInfo
	for e, err := range a.store.List(ctx, kv.Key{runPrefix}) {
		if err != nil {
			return nil, err
		}
		var run RunInfo
		if err := msgpack.Unmarshal(e.Value, &run); err != nil {
			return nil, fmt.Errorf("console: decode run %s: %w", e.Key, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Events iterates over the records of run in the order they were recorded.
func (a *Archive) Events(ctx context.Context, run string) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for e, err := range a.store.List(ctx, kv.Key{eventPrefix, run}) {
			if err != nil {
				yield(nil, err)
				return
			}
			var rec Record
			if err := msgpack.Unmarshal(e.Value, &rec); err != nil {
				yield(nil, fmt.Errorf("console: decode record %s: %w", e.Key, err))
				return
			}
			if !yield(&rec, nil) {
				return
			}
		}
	}
}

// Delete removes run and its records.
func (a *Archive) Delete(ctx context.Context, run string) error {
	keys := []kv.Key{{runPrefix, run}}
	for e, err := range a.store.List(ctx, kv.Key{eventPrefix, run}) {
		if err != nil {
			return err
		}
		keys = append(keys, e.Key)
	}
	if len(keys) == 1 {
		if _, err := a.store.Get(ctx, keys[0]); err != nil {
			return fmt.Errorf("console: run %q: %w", run, err)
		}
	}
	return a.store.BatchDelete(ctx, keys)
}

// Close closes the underlying store.
func (a *Archive) Close() error {
	return a.store.Close()
}
