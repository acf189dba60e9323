package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_LastTriggerWins(t *testing.T) {
	d := New(40 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	for i, v := range []string{"a", "ab", "abc"} {
		v := v
		last := i == 2
		d.Trigger("subject", func() {
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
			if last {
				close(done)
			}
		})
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced action did not run")
	}
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"abc"}, got)
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	d := New(time.Hour)
	var runs atomic.Int32
	d.Trigger("a", func() { runs.Add(1) })
	d.Trigger("b", func() { runs.Add(1) })

	assert.True(t, d.Pending("a"))
	assert.True(t, d.Pending("b"))

	d.Flush()
	assert.Equal(t, int32(2), runs.Load())
	assert.False(t, d.Pending("a"))
}

func TestDebouncer_FlushKeepsTriggerOrder(t *testing.T) {
	d := New(time.Hour)
	var order []string
	d.Trigger("b", func() { order = append(order, "b") })
	d.Trigger("a", func() { order = append(order, "a") })
	d.Trigger("c", func() { order = append(order, "c") })

	d.Flush()
	assert.Equal(t, []string{"b", "a", "c"}, order)
}

func TestDebouncer_Cancel(t *testing.T) {
	d := New(10 * time.Millisecond)
	var runs atomic.Int32
	d.Trigger("a", func() { runs.Add(1) })

	require.True(t, d.Cancel("a"))
	assert.False(t, d.Cancel("a"))

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, runs.Load())
}

func TestDebouncer_StopIgnoresLaterTriggers(t *testing.T) {
	d := New(time.Millisecond)
	var runs atomic.Int32
	d.Trigger("a", func() { runs.Add(1) })
	d.Stop()
	d.Trigger("b", func() { runs.Add(1) })

	time.Sleep(20 * time.Millisecond)
	d.Flush()
	assert.Zero(t, runs.Load())
}

func TestDebouncer_FlushWaitsForRunningAction(t *testing.T) {
	d := New(time.Millisecond)
	defer d.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	d.Trigger("a", func() {
		close(started)
		<-release
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("debounced action did not start")
	}

	flushed := make(chan struct{})
	go func() {
		d.Flush()
		close(flushed)
	}()

	select {
	case <-flushed:
		t.Fatal("Flush returned while an action was running")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("Flush did not return after the action finished")
	}
}
