package logger

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

// LogEntry is one console line kept in the buffer.
type LogEntry struct {
	Timestamp time.Time
	Line      string
}

// LogBuffer is a thread-safe ring of the most recent console lines. It is an
// io.Writer so it can stand in for stdout while a TUI owns the terminal.
type LogBuffer struct {
	mu           sync.Mutex
	ringBuffer   []LogEntry
	maxSize      int
	currentIndex int
	wrapped      bool
	partial      []byte

	// Stats
	totalEntries   uint64
	droppedEntries uint64
}

// NewLogBuffer creates a buffer keeping the last maxSize lines.
func NewLogBuffer(maxSize int) *LogBuffer {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LogBuffer{
		ringBuffer: make([]LogEntry, maxSize),
		maxSize:    maxSize,
	}
}

// Write splits p into lines; an unterminated tail waits for the next write.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	data := append(lb.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		lb.add(strings.TrimRight(string(data[:i]), "\r"))
		data = data[i+1:]
	}
	lb.partial = append([]byte(nil), data...)
	return len(p), nil
}

// Add appends a line.
func (lb *LogBuffer) Add(line string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.add(line)
}

func (lb *LogBuffer) add(line string) {
	if lb.wrapped {
		lb.droppedEntries++
	}
	lb.ringBuffer[lb.currentIndex] = LogEntry{Timestamp: time.Now(), Line: line}
	lb.currentIndex = (lb.currentIndex + 1) % lb.maxSize
	if lb.currentIndex == 0 {
		lb.wrapped = true
	}
	lb.totalEntries++
}

// GetRecentLogs returns up to limit of the newest entries, oldest first.
// limit <= 0 returns everything buffered.
func (lb *LogBuffer) GetRecentLogs(limit int) []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	count := lb.currentIndex
	start := 0
	if lb.wrapped {
		count = lb.maxSize
		start = lb.currentIndex
	}
	if limit > 0 && limit < count {
		start += count - limit
		count = limit
	}

	logs := make([]LogEntry, 0, count)
	for i := 0; i < count; i++ {
		logs = append(logs, lb.ringBuffer[(start+i)%lb.maxSize])
	}
	return logs
}

// GetStats returns lines written and lines overwritten.
func (lb *LogBuffer) GetStats() (total, dropped uint64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.totalEntries, lb.droppedEntries
}

// Sync satisfies zapcore.WriteSyncer.
func (lb *LogBuffer) Sync() error { return nil }
