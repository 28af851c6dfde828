package workerpool

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPool_RunsAllTasks(t *testing.T) {
	p := New(4, 16, discardLogger())

	var n atomic.Int64
	for i := 0; i < 100; i++ {
		assert.True(t, p.Submit(func() { n.Add(1) }))
	}
	p.Shutdown()

	assert.Equal(t, int64(100), n.Load())
}

func TestPool_RecoversPanics(t *testing.T) {
	p := New(1, 4, discardLogger())

	var ran atomic.Bool
	p.Submit(func() { panic("boom") })
	p.Submit(func() { ran.Store(true) })
	p.Shutdown()

	assert.True(t, ran.Load(), "worker survives a panicking task")
}

func TestPool_TrySubmitWhenFull(t *testing.T) {
	p := New(1, 1, discardLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	p.Submit(func() {
		close(started)
		<-release
	})
	<-started

	assert.True(t, p.TrySubmit(func() {}), "queue has one free slot")
	assert.False(t, p.TrySubmit(func() {}), "queue is full")

	close(release)
	p.Shutdown()
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p := New(2, 2, discardLogger())
	p.Shutdown()
	p.Shutdown()

	assert.False(t, p.Submit(func() {}))
	assert.False(t, p.TrySubmit(func() {}))
}

func TestPool_ConcurrentSubmitAndShutdown(t *testing.T) {
	p := New(2, 8, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p.TrySubmit(func() { time.Sleep(time.Microsecond) })
			}
		}()
	}
	time.Sleep(time.Millisecond)
	p.Shutdown()
	wg.Wait()
}
