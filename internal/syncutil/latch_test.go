package syncutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCountDownLatchImmediateReturn(t *testing.T) {
	l := NewCountDownLatch(1)
	l.CountDown()

	done := make(chan struct{})
	go func() {
		l.Await()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Await blocked after count reached zero")
	}
}

func TestCountDownLatchWaitsForAll(t *testing.T) {
	l := NewCountDownLatch(3)
	released := make(chan struct{})

	go func() {
		l.Await()
		close(released)
	}()

	l.CountDown()
	l.CountDown()

	select {
	case <-released:
		t.Fatal("Await returned before all count-downs")
	case <-time.After(50 * time.Millisecond):
	}

	l.CountDown()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("Await never returned")
	}
}

func TestCountDownLatchPanicsOnBadCount(t *testing.T) {
	require.Panics(t, func() { NewCountDownLatch(0) })
	require.Panics(t, func() { NewCountDownLatch(-1) })
}

func TestCyclicBarrierReleasesAllAndResets(t *testing.T) {
	n := 4
	b := NewCyclicBarrier(n)
	done := make(chan int, n)

	for i := 0; i < n; i++ {
		go func() {
			b.Await()
			done <- 1
		}()
	}

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("barrier never released all parties")
		}
	}

	// Second cycle should work identically.
	done2 := make(chan int, n)
	for i := 0; i < n; i++ {
		go func() {
			b.Await()
			done2 <- 1
		}()
	}
	for i := 0; i < n; i++ {
		select {
		case <-done2:
		case <-time.After(time.Second):
			t.Fatal("barrier did not reset for second cycle")
		}
	}
}
