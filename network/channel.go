package network

import (
	"errors"
	"sort"
	"sync"
)

// ErrClosed is returned by Send on a closed channel.
var ErrClosed = errors.New("network: channel closed")

// Listener receives every message arriving on a channel.
type Listener func(msg string)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

// Channel is a bidirectional text channel to a single peer.
type Channel interface {
	Send(msg string) error
	AddMessageListener(l Listener) ListenerID
	RemoveMessageListener(id ListenerID)
}

// listeners is the registry shared by every adapter.
type listeners struct {
	mu     sync.RWMutex
	nextID ListenerID
	byID   map[ListenerID]Listener
}

func (r *listeners) add(l Listener) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byID == nil {
		r.byID = make(map[ListenerID]Listener)
	}
	r.nextID++
	r.byID[r.nextID] = l
	return r.nextID
}

func (r *listeners) remove(id ListenerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// dispatch calls every listener in registration order.
func (r *listeners) dispatch(msg string) {
	r.mu.RLock()
	ids := make([]ListenerID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ls := make([]Listener, len(ids))
	for i, id := range ids {
		ls[i] = r.byID[id]
	}
	r.mu.RUnlock()

	for _, l := range ls {
		l(msg)
	}
}

// inbox queues received messages and delivers them from one goroutine.
type inbox struct {
	mu      sync.Mutex
	queue   []string
	wake    chan struct{}
	done    chan struct{}
	closed  bool
	deliver func(string)
}

func newInbox(deliver func(string)) *inbox {
	in := &inbox{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		deliver: deliver,
	}
	go in.loop()
	return in
}

func (in *inbox) push(msg string) bool {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return false
	}
	in.queue = append(in.queue, msg)
	in.mu.Unlock()
	select {
	case in.wake <- struct{}{}:
	default:
	}
	return true
}

func (in *inbox) close() {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	in.mu.Unlock()
	close(in.done)
}

func (in *inbox) loop() {
	for {
		select {
		case <-in.wake:
		case <-in.done:
			return
		}
		for {
			in.mu.Lock()
			if len(in.queue) == 0 || in.closed {
				in.mu.Unlock()
				break
			}
			msg := in.queue[0]
			in.queue = in.queue[1:]
			in.mu.Unlock()
			in.deliver(msg)
		}
	}
}
