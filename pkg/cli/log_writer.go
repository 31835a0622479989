package cli

import (
	"slices"
	"strings"

	"github.com/haivivi/rtconsole/pkg/buffer"
)

// LogWriter implements io.Writer and keeps the most recent log lines for
// TUI display, notifying a channel on each new line.
type LogWriter struct {
	buf *buffer.RingBuffer[string]
	ch  chan string
}

// NewLogWriter creates a new log writer keeping at most maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{
		buf: buffer.RingN[string](maxLines),
		ch:  make(chan string, 100),
	}
}

// Write implements io.Writer.
// Handles multi-line input by splitting on newlines.
func (w *LogWriter) Write(p []byte) (n int, err error) {
	text := strings.TrimRight(string(p), "\n")
	if text == "" {
		return len(p), nil
	}

	lines := strings.Split(text, "\n")
	w.buf.Write(lines)
	for _, line := range lines {
		// Non-blocking send to channel
		select {
		case w.ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Lines returns the buffered lines, oldest first.
func (w *LogWriter) Lines() []string {
	return slices.Collect(w.buf.All())
}

// Dropped returns how many lines fell out of the buffer.
func (w *LogWriter) Dropped() int64 {
	return w.buf.Evicted()
}

// Channel returns the notification channel for new lines.
func (w *LogWriter) Channel() <-chan string {
	return w.ch
}
