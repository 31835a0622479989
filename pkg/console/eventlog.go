package console

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/itchyny/gojq"

	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

// AwaitingEvents is shown by the event log when the history is empty.
const AwaitingEvents = "Awaiting events..."

// timestampLayout formats the render-time timestamp of a row.
const timestampLayout = "15:04:05"

// Row is one rendered event log entry.
type Row struct {
	// Key identifies the row across render passes: the event id, or the
	// event's position from the oldest end when it has none.
	Key string

	Origin rt.Origin
	Type   string

	// Time is the render-time timestamp.
	Time string

	Expanded bool

	// Body is the event as indented JSON; set only when Expanded.
	Body string

	Event *rt.Event
}

// Label returns the direction label shown before the event type.
func (r Row) Label() string {
	if r.Origin == rt.OriginClient {
		return "client:"
	}
	return "server:"
}

// EventLog decides which events are shown and which are expanded.
type EventLog struct {
	mu         sync.Mutex
	expanded   map[string]bool
	filterExpr string
	filter     *gojq.Query
}

// NewEventLog creates an event log with every row collapsed.
func NewEventLog() *EventLog {
	return &EventLog{expanded: make(map[string]bool)}
}

// Render returns one row per event in store order.
//
// If events holds more than one streaming fragment of the same "...delta"
// type, the pass is skipped: Render returns no rows and false. Callers keep
// showing whatever they showed before.
func (l *EventLog) Render(events []*rt.Event, now time.Time) ([]Row, bool) {
	seen := make(map[string]bool)
	for _, ev := range events {
		if !ev.IsDelta() {
			continue
		}
		if seen[ev.Type] {
			return nil, false
		}
		seen[ev.Type] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := now.Format(timestampLayout)
	rows := make([]Row, 0, len(events))
	for i, ev := range events {
		if l.filter != nil && !l.matchLocked(ev) {
			continue
		}
		row := Row{
			Key:    rowKey(ev, len(events)-1-i),
			Origin: ev.Direction(),
			Type:   ev.Type,
			Time:   ts,
			Event:  ev,
		}
		if l.expanded[row.Key] {
			row.Expanded = true
			body, err := ev.Indent()
			if err != nil {
				body = fmt.Sprintf("<%v>", err)
			}
			row.Body = body
		}
		rows = append(rows, row)
	}
	return rows, true
}

func rowKey(ev *rt.Event, pos int) string {
	if ev.EventID != "" {
		return ev.EventID
	}
	return fmt.Sprintf("#%d", pos)
}

// Toggle flips the expansion of the row with key and returns the new state.
func (l *EventLog) Toggle(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.expanded[key] {
		delete(l.expanded, key)
		return false
	}
	l.expanded[key] = true
	return true
}

// CollapseAll collapses every row.
func (l *EventLog) CollapseAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.expanded)
}

// SetFilter installs a jq expression selecting the events to show. An event
// is shown when the expression's first result is neither false nor null.
// An empty expression removes the filter.
func (l *EventLog) SetFilter(expr string) error {
	expr = strings.TrimSpace(expr)
	var query *gojq.Query
	if expr != "" {
		var err error
		query, err = gojq.Parse(expr)
		if err != nil {
			return fmt.Errorf("invalid jq expression %q: %w", expr, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.filterExpr = expr
	l.filter = query
	return nil
}

// Filter returns the current filter expression.
func (l *EventLog) Filter() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filterExpr
}

func (l *EventLog) matchLocked(ev *rt.Event) bool {
	data, err := ev.JSON()
	if err != nil {
		return false
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return false
	}
	return matchQuery(l.filter, input)
}

// matchQuery reports whether the first result of q on input is truthy.
func matchQuery(q *gojq.Query, input any) bool {
	iter := q.Run(input)
	v, ok := iter.Next()
	if !ok {
		return false
	}
	if err, ok := v.(error); ok {
		slog.Debug("jq filter failed", "error", err)
		return false
	}
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		return true
	}
}
