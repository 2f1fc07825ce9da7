// Package metrics holds the prometheus collectors of the relay and the
// signaling broker. Collectors are created per instance and registered on an
// injected prometheus.Registerer; a nil *Relay or *Signaling records nothing.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay counts sequencer activity.
type Relay struct {
	Appended   prometheus.Counter
	Discarded  *prometheus.CounterVec
	Broadcasts prometheus.Counter
}

// NewRelay creates the relay collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewRelay(reg prometheus.Registerer) (*Relay, error) {
	r := &Relay{
		Appended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mledger_relay_appended_total",
			Help: "Entries appended to the ledger by the sequencer",
		}),
		Discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mledger_relay_discarded_total",
			Help: "Inbound messages discarded by the sequencer",
		}, []string{"reason"}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mledger_relay_broadcasts_total",
			Help: "Ledger broadcasts sent",
		}),
	}
	var err error
	if r.Appended, err = register(reg, r.Appended); err != nil {
		return nil, err
	}
	if r.Discarded, err = register(reg, r.Discarded); err != nil {
		return nil, err
	}
	if r.Broadcasts, err = register(reg, r.Broadcasts); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Relay) IncAppended() {
	if r != nil {
		r.Appended.Inc()
	}
}

func (r *Relay) IncDiscarded(reason string) {
	if r != nil {
		r.Discarded.WithLabelValues(reason).Inc()
	}
}

func (r *Relay) IncBroadcasts() {
	if r != nil {
		r.Broadcasts.Inc()
	}
}

// Signaling counts broker traffic.
type Signaling struct {
	Messages    *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
	Connections prometheus.Gauge
}

// NewSignaling creates the broker collectors and registers them on reg.
func NewSignaling(reg prometheus.Registerer) (*Signaling, error) {
	s := &Signaling{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mledger_signaling_messages_total",
			Help: "Signaling messages handled by type",
		}, []string{"type"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mledger_signaling_rejected_total",
			Help: "Signaling messages rejected by error code",
		}, []string{"code"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mledger_signaling_connections",
			Help: "Open signaling websocket connections",
		}),
	}
	var err error
	if s.Messages, err = register(reg, s.Messages); err != nil {
		return nil, err
	}
	if s.Rejected, err = register(reg, s.Rejected); err != nil {
		return nil, err
	}
	if s.Connections, err = register(reg, s.Connections); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Signaling) IncMessage(msgType string) {
	if s != nil {
		s.Messages.WithLabelValues(msgType).Inc()
	}
}

func (s *Signaling) IncRejected(code string) {
	if s != nil {
		s.Rejected.WithLabelValues(code).Inc()
	}
}

// ConnectionOpened and ConnectionClosed track the live socket count.
func (s *Signaling) ConnectionOpened() {
	if s != nil {
		s.Connections.Inc()
	}
}

func (s *Signaling) ConnectionClosed() {
	if s != nil {
		s.Connections.Dec()
	}
}

// register adds c to reg. When an identical collector is already registered
// that one is returned instead.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if reg == nil {
		return c, nil
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return c, err
		}
		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}
