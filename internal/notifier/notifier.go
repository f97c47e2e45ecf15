// Package notifier provides a coalescing broadcast of state snapshots.
package notifier

import "sync"

// Notifier broadcasts values to all subscribed listeners.
//
// Each listener has a one-slot buffer. When a listener has not consumed the
// previous value, the pending value is replaced, so slow listeners always
// observe the latest snapshot and never block the broadcaster.
type Notifier[T any] struct {
	mu        sync.RWMutex
	listeners map[chan T]struct{}
}

// New creates a new Notifier instance.
func New[T any]() *Notifier[T] {
	return &Notifier[T]{
		listeners: make(map[chan T]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast values.
// The caller must call Unsubscribe when done.
func (n *Notifier[T]) Subscribe() chan T {
	ch := make(chan T, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier[T]) Unsubscribe(ch chan T) {
	n.mu.Lock()
	_, ok := n.listeners[ch]
	delete(n.listeners, ch)
	n.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Len returns the number of subscribed listeners.
func (n *Notifier[T]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Broadcast delivers v to every listener without blocking.
func (n *Notifier[T]) Broadcast(v T) {
	// Write lock: replacing a pending value must not race another Broadcast.
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.listeners {
		select {
		case ch <- v:
			continue
		default:
		}
		// Slot full: drop the stale value and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
