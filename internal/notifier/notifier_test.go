package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Subscribe_Unsubscribe(t *testing.T) {
	n := New[int]()

	ch := n.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Len())

	n.Unsubscribe(ch)
	assert.Equal(t, 0, n.Len())

	// Unsubscribing twice must not panic on a closed channel.
	n.Unsubscribe(ch)
}

func TestNotifier_Broadcast(t *testing.T) {
	n := New[string]()

	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	n.Broadcast("db1")

	for _, ch := range []chan string{ch1, ch2} {
		select {
		case v := <-ch:
			assert.Equal(t, "db1", v)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("listener did not receive broadcast")
		}
	}
}

func TestNotifier_Broadcast_LatestWins(t *testing.T) {
	n := New[int]()
	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		n.Broadcast(1)
		n.Broadcast(2)
		n.Broadcast(3)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Broadcast blocked on full channel")
	}

	assert.Equal(t, 3, <-ch)
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New[int]()

	var wg sync.WaitGroup
	const numGoroutines = 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch := n.Subscribe()
			n.Broadcast(i)
			n.Unsubscribe(ch)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 0, n.Len())
}
