package process

import (
	"bytes"
	"sync"
)

// maxLineLength bounds the buffered partial line; longer lines are emitted in pieces.
const maxLineLength = 64 * 1024

// LineWriter is an io.Writer that calls Emit once per complete line written
// to it. Trailing carriage returns are stripped and empty lines are skipped.
type LineWriter struct {
	Emit func(line string)

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLineWriter returns a LineWriter that hands each line to emit.
func NewLineWriter(emit func(line string)) *LineWriter {
	return &LineWriter{Emit: emit}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			if len(data) >= maxLineLength {
				w.emit(string(data))
				w.buf.Reset()
			}
			break
		}
		w.emit(string(data[:i]))
		w.buf.Next(i + 1)
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *LineWriter) emit(line string) {
	line = trimCR(line)
	if line == "" || w.Emit == nil {
		return
	}
	w.Emit(line)
}

func trimCR(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\r' {
		return s[:n-1]
	}
	return s
}
