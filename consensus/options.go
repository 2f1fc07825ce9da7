package consensus

import (
	"crypto/ed25519"
	"encoding/json"
	"log/slog"

	"github.com/luca-patrignani/mental-ledger/ledger"
	"github.com/luca-patrignani/mental-ledger/metrics"
)

// Stamper lets the sequencer fill in payload fields that a guest must not
// choose, such as dice values. It returns the payload to append.
type Stamper func(kind string, payload json.RawMessage) (json.RawMessage, error)

type options struct {
	logger           *slog.Logger
	metrics          *metrics.Relay
	stamper          Stamper
	signer           ed25519.PrivateKey
	ledger           *ledger.Ledger
	requireSigned    bool
}

// Option configures a Sequencer or a Replica. Options that do not apply to a
// role are ignored.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records sequencer activity on m.
func WithMetrics(m *metrics.Relay) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithStamper installs s on the sequencer.
func WithStamper(s Stamper) Option {
	return func(o *options) {
		o.stamper = s
	}
}

// WithSigner makes the sequencer sign every entry it appends.
func WithSigner(priv ed25519.PrivateKey) Option {
	return func(o *options) {
		o.signer = priv
	}
}

// WithLedger resumes the sequencer from an existing ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(o *options) {
		o.ledger = l
	}
}

// WithRequireSigned makes the replica reject broadcasts holding any unsigned
// entry. Signatures that are present are always checked.
func WithRequireSigned() Option {
	return func(o *options) {
		o.requireSigned = true
	}
}

func newOptions(component string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", component)
	return o
}
