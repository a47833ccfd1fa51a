package logger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBufferConcurrentAccess(t *testing.T) {
	buffer := NewLogBuffer(100)

	var wg sync.WaitGroup
	numGoroutines := 10
	logsPerGoroutine := 100

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < logsPerGoroutine; j++ {
				fmt.Fprintf(buffer, "goroutine %d iteration %d\n", id, j)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = buffer.GetRecentLogs(10)
			_, _ = buffer.GetStats()
		}
	}()

	wg.Wait()
	<-done

	total, dropped := buffer.GetStats()
	assert.Equal(t, uint64(numGoroutines*logsPerGoroutine), total)
	assert.Equal(t, total-100, dropped)
	assert.Len(t, buffer.GetRecentLogs(0), 100)
}

func TestLogBufferRingBufferBehavior(t *testing.T) {
	buffer := NewLogBuffer(5)
	for i := 0; i < 10; i++ {
		buffer.Add(fmt.Sprintf("Log %d", i))
	}

	logs := buffer.GetRecentLogs(10)
	require.Len(t, logs, 5)
	assert.Equal(t, "Log 5", logs[0].Line)
	assert.Equal(t, "Log 9", logs[4].Line)

	last := buffer.GetRecentLogs(2)
	require.Len(t, last, 2)
	assert.Equal(t, "Log 8", last[0].Line)
	assert.Equal(t, "Log 9", last[1].Line)
}

func TestLogBufferNotWrapped(t *testing.T) {
	buffer := NewLogBuffer(5)
	buffer.Add("a")
	buffer.Add("b")

	logs := buffer.GetRecentLogs(0)
	require.Len(t, logs, 2)
	assert.Equal(t, "a", logs[0].Line)
	assert.Equal(t, "b", logs[1].Line)
}

func TestLogBufferSplitsPartialWrites(t *testing.T) {
	buffer := NewLogBuffer(5)
	_, _ = buffer.Write([]byte("first li"))
	assert.Empty(t, buffer.GetRecentLogs(0))

	_, _ = buffer.Write([]byte("ne\r\nsecond\nthi"))
	logs := buffer.GetRecentLogs(0)
	require.Len(t, logs, 2)
	assert.Equal(t, "first line", logs[0].Line)
	assert.Equal(t, "second", logs[1].Line)
}
