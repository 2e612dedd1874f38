package cli

import (
	"strings"
	"sync"

	"github.com/lincolnyu/qsharp-sub003/pkg/buffer"
)

// LogWriter implements io.Writer and keeps the most recent log lines for
// TUI display. Lines are appended as chunks to a buffer.Hooky, so the
// display reads them without blocking the loggers.
type LogWriter struct {
	mu  sync.Mutex // serializes appends; Hooky allows a single writer
	buf *buffer.Hooky
	ch  chan string
}

// NewLogWriter creates a new log writer keeping at most maxLines lines.
func NewLogWriter(maxLines int) (*LogWriter, error) {
	h, err := buffer.NewHooky(maxLines)
	if err != nil {
		return nil, err
	}
	return &LogWriter{
		buf: h,
		ch:  make(chan string, 100),
	}, nil
}

// Write implements io.Writer.
// Handles multi-line input by splitting on newlines.
func (w *LogWriter) Write(p []byte) (n int, err error) {
	text := strings.TrimRight(string(p), "\n")
	lines := strings.Split(text, "\n")

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, line := range lines {
		// A reader holds a slot only while copying a line out, so an
		// infinite wait here is short.
		w.buf.Append([]byte(line+"\n"), buffer.Infinite)

		select {
		case w.ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Lines returns the buffered lines, oldest first.
func (w *LogWriter) Lines() []string {
	var out strings.Builder
	p := make([]byte, 4096)
	cur := w.buf.NewCursor(w.buf.Oldest())
	for {
		r := w.buf.Read(cur, p, buffer.Infinite, false)
		out.Write(p[:r.N])
		if r.Status == buffer.Overrun {
			// Lines were replaced while reading; start over from the
			// oldest that is left.
			out.Reset()
			cur.Seek(w.buf.Oldest())
			continue
		}
		if r.N < len(p) {
			break
		}
	}
	text := strings.TrimSuffix(out.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Channel returns the notification channel for new lines.
func (w *LogWriter) Channel() <-chan string {
	return w.ch
}
