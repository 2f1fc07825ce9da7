package network

import (
	"log/slog"
	"sync"
)

// Fanout broadcasts a message to every registered channel. Failed sends are
// logged and dropped; the next broadcast is expected to repair the peer.
type Fanout struct {
	mu       sync.RWMutex
	channels map[string]Channel
	logger   *slog.Logger
}

// NewFanout returns an empty fanout. A nil logger uses slog.Default.
func NewFanout(logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		channels: make(map[string]Channel),
		logger:   logger.With("component", "fanout"),
	}
}

// Add registers ch under id, replacing any channel with the same id.
func (f *Fanout) Add(id string, ch Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = ch
}

func (f *Fanout) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, id)
}

// Len is the number of registered channels.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.channels)
}

// Broadcast sends msg on every channel and returns how many sends succeeded.
func (f *Fanout) Broadcast(msg string) int {
	f.mu.RLock()
	targets := make(map[string]Channel, len(f.channels))
	for id, ch := range f.channels {
		targets[id] = ch
	}
	f.mu.RUnlock()

	delivered := 0
	for id, ch := range targets {
		if err := ch.Send(msg); err != nil {
			f.logger.Warn("broadcast failed", "peer", id, "err", err)
			continue
		}
		delivered++
	}
	return delivered
}
