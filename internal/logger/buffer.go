package logger

import (
	"strings"
	"sync"
)

// DefaultBufferLines is how many lines a Buffer keeps.
const DefaultBufferLines = 1000

// Buffer captures the most recent log lines in memory for the /logs endpoint.
type Buffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewBuffer creates a buffer keeping at most max lines.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultBufferLines
	}
	return &Buffer{lines: make([]string, 0, max), max: max}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, strings.TrimRight(string(p), "\n"))
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
	return len(p), nil
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}
