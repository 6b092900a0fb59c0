package logsink

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnqueuePersists(t *testing.T) {
	st, driver := newTestStore(t)
	s := New(st, 10)
	defer s.Shutdown()

	s.Enqueue(newEntry("app-1", "查找零件"))

	require.Eventually(t, func() bool {
		return s.Persisted() == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, driver.logs(), 1)
	require.Equal(t, "app-1", driver.logs()[0].AppKey)
}

func TestShutdownDrainsQueue(t *testing.T) {
	st, driver := newTestStore(t)
	driver.block() // hold the worker so entries pile up
	s := New(st, 100)

	for i := 0; i < 20; i++ {
		s.Enqueue(newEntry("app-1", fmt.Sprintf("text-%d", i)))
	}
	driver.unblock()
	s.Shutdown()

	require.Equal(t, int64(20), s.Persisted())
	require.Len(t, driver.logs(), 20)
}

func TestFullQueueDropsAndCounts(t *testing.T) {
	st, driver := newTestStore(t)
	driver.block()
	s := New(st, 2)
	defer func() {
		driver.unblock()
		s.Shutdown()
	}()

	// Let the worker pick up one entry and park on it, then fill the queue.
	s.Enqueue(newEntry("app-1", "first"))
	require.Eventually(t, func() bool { return driver.inFlight() }, 2*time.Second, time.Millisecond)

	s.Enqueue(newEntry("app-1", "q1"))
	s.Enqueue(newEntry("app-1", "q2"))
	s.Enqueue(newEntry("app-1", "overflow"))

	require.Equal(t, int64(1), s.Dropped())
}

func TestPersistErrorDoesNotStopWorker(t *testing.T) {
	st, driver := newTestStore(t)
	driver.failNext()
	s := New(st, 10)
	defer s.Shutdown()

	s.Enqueue(newEntry("app-1", "fails"))
	s.Enqueue(newEntry("app-1", "succeeds"))

	require.Eventually(t, func() bool {
		return s.Persisted() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
