package network

import "sync"

// PipeEnd is one side of an in-memory channel pair.
type PipeEnd struct {
	listeners
	in   *inbox
	peer *PipeEnd
	once sync.Once
}

// Pipe returns two connected channels. A message sent on one end is
// delivered asynchronously to the listeners of the other.
func Pipe() (*PipeEnd, *PipeEnd) {
	a, b := &PipeEnd{}, &PipeEnd{}
	a.in = newInbox(a.dispatch)
	b.in = newInbox(b.dispatch)
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeEnd) Send(msg string) error {
	if !p.peer.in.push(msg) {
		return ErrClosed
	}
	return nil
}

func (p *PipeEnd) AddMessageListener(l Listener) ListenerID {
	return p.add(l)
}

func (p *PipeEnd) RemoveMessageListener(id ListenerID) {
	p.remove(id)
}

// Close tears down both ends.
func (p *PipeEnd) Close() error {
	p.once.Do(func() {
		p.in.close()
		p.peer.in.close()
	})
	return nil
}
