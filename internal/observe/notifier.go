// Package observe provides the subscribe/notify contract shared by the
// stateful components. Observers get no payload; they pull a snapshot from
// the component that notified them.
package observe

import "sync"

// Notifier is a thread-safe list of change callbacks.
type Notifier struct {
	mu        sync.RWMutex
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func()
}

// Subscribe registers fn to be called after every state change.
// The returned function unsubscribes it and is safe to call more than once.
func (n *Notifier) Subscribe(fn func()) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, listener{id: id, fn: fn})

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		filtered := n.listeners[:0]
		for _, l := range n.listeners {
			if l.id != id {
				filtered = append(filtered, l)
			}
		}
		n.listeners = filtered
	}
}

// Notify calls every listener. It must not be called while the caller holds
// a lock the listeners may need, since they typically read a snapshot.
func (n *Notifier) Notify() {
	n.mu.RLock()
	targets := make([]func(), 0, len(n.listeners))
	for _, l := range n.listeners {
		targets = append(targets, l.fn)
	}
	n.mu.RUnlock()

	for _, fn := range targets {
		fn()
	}
}

// Len reports the number of active listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
