package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimers replaces afterFunc with one that records callbacks so the
// test decides when timers fire.
func manualTimers(t *testing.T) *[]func() {
	t.Helper()
	orig := afterFunc
	t.Cleanup(func() { afterFunc = orig })

	var callbacks []func()
	afterFunc = func(_ time.Duration, f func()) *time.Timer {
		callbacks = append(callbacks, f)
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		return timer
	}
	return &callbacks
}

func TestStaleCallbackIgnored(t *testing.T) {
	callbacks := manualTimers(t)

	var called atomic.Int32
	d := New(time.Second, func() { called.Add(1) })
	d.Trigger()
	d.Trigger()
	require.Len(t, *callbacks, 2)

	(*callbacks)[0]()
	(*callbacks)[1]()
	assert.EqualValues(t, 1, called.Load(), "only the latest trigger fires")
}

func TestStopDropsPendingCallback(t *testing.T) {
	callbacks := manualTimers(t)

	var called atomic.Int32
	d := New(time.Second, func() { called.Add(1) })
	d.Trigger()
	d.Stop()
	require.Len(t, *callbacks, 1)

	(*callbacks)[0]()
	assert.Zero(t, called.Load())
}

func TestTriggerAfterFireSchedulesAgain(t *testing.T) {
	callbacks := manualTimers(t)

	var called atomic.Int32
	d := New(time.Second, func() { called.Add(1) })
	d.Trigger()
	(*callbacks)[0]()
	d.Trigger()
	(*callbacks)[1]()
	assert.EqualValues(t, 2, called.Load())
}

func TestBurstFiresOnce(t *testing.T) {
	var count atomic.Int32
	done := make(chan struct{})
	d := New(10*time.Millisecond, func() {
		if count.Add(1) == 1 {
			close(done)
		}
	})
	for range 5 {
		d.Trigger()
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debouncer did not fire")
	}
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 1, count.Load())
}

func TestStopBeforeDelay(t *testing.T) {
	var count atomic.Int32
	d := New(20*time.Millisecond, func() { count.Add(1) })
	d.Trigger()
	d.Stop()
	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, count.Load())
}
