package signaling

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/luca-patrignani/mental-ledger/metrics"
)

// Message types of the signaling protocol.
const (
	TypeOffer       = "offer"
	TypeListOffers  = "listOffers"
	TypeAnswer      = "answer"
	TypeDeleteOffer = "deleteOffer"

	TypeWelcome      = "welcome"
	TypeOfferCreated = "offerCreated"
	TypeOffers       = "offers"
	TypeAnswerSent   = "answerSent"
	TypeOfferDeleted = "offerDeleted"
	TypeError        = "error"
)

// Request is any client message. Fields that do not apply to Type are empty.
type Request struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`

	ConnectionID string          `json:"connectionId,omitempty"`
	CategoryID   string          `json:"categoryId,omitempty"`
	RoundID      string          `json:"roundId,omitempty"`
	Name         string          `json:"name,omitempty"`
	PublicKey    string          `json:"publicKey,omitempty"`
	Slots        json.RawMessage `json:"slots,omitempty"`
	SDP          string          `json:"sdp,omitempty"`
}

// Reply is any server message.
type Reply struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`

	ConnectionID string   `json:"connectionId,omitempty"`
	Offer        *Record  `json:"offer,omitempty"`
	Offers       []Record `json:"offers,omitempty"`

	// Set on answers forwarded to the host.
	From      string `json:"from,omitempty"`
	Name      string `json:"name,omitempty"`
	PublicKey string `json:"publicKey,omitempty"`
	SDP       string `json:"sdp,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Forward delivers a reply to another connection.
type Forward func(connectionID string, r Reply) error

// Broker applies signaling requests to a Store. Requests are handled one at
// a time.
type Broker struct {
	mu      sync.Mutex
	store   Store
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Signaling
}

type BrokerOption func(*Broker)

func WithLogger(l *slog.Logger) BrokerOption {
	return func(b *Broker) {
		b.logger = l.With("component", "broker")
	}
}

func WithMetrics(m *metrics.Signaling) BrokerOption {
	return func(b *Broker) {
		b.metrics = m
	}
}

func WithClock(now func() time.Time) BrokerOption {
	return func(b *Broker) {
		b.now = now
	}
}

func NewBroker(store Store, opts ...BrokerOption) *Broker {
	b := &Broker{
		store:  store,
		now:    time.Now,
		logger: slog.Default().With("component", "broker"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Offer publishes or replaces the offer of connID. Older offers of the same
// round are removed and the newest one hands its participants over.
func (b *Broker) Offer(connID string, req Request) (Record, error) {
	if req.RoundID == "" || req.PublicKey == "" {
		return Record{}, badRequest("offer needs roundId and publicKey")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	all, err := b.store.List()
	if err != nil {
		return Record{}, err
	}
	var participants []Participant
	var newest int64 = -1
	for _, r := range all {
		if r.RoundID != req.RoundID && r.ConnectionID != connID {
			continue
		}
		if r.CreatedAt > newest {
			newest, participants = r.CreatedAt, r.Participants
		}
		if r.ConnectionID != connID {
			if err := b.store.Delete(r.ConnectionID); err != nil {
				return Record{}, err
			}
			b.logger.Debug("offer replaced", "old", r.ConnectionID, "round", r.RoundID)
		}
	}
	rec := Record{
		ConnectionID: connID,
		CategoryID:   req.CategoryID,
		RoundID:      req.RoundID,
		Name:         req.Name,
		PublicKey:    req.PublicKey,
		Status:       StatusWaiting,
		Slots:        req.Slots,
		SDP:          req.SDP,
		Participants: append([]Participant{}, participants...),
		CreatedAt:    b.now().UnixMilli(),
	}
	rec.Status = statusOf(rec)
	if err := b.store.Put(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func statusOf(r Record) Status {
	if c := r.Capacity(); c > 0 && len(r.Participants)+1 >= c {
		return StatusFull
	}
	return StatusWaiting
}

// ListOffers returns the waiting offers of categoryID. An empty category
// matches every offer.
func (b *Broker) ListOffers(categoryID string) ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	all, err := b.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(all))
	for _, r := range all {
		if r.Status != StatusWaiting {
			continue
		}
		if categoryID != "" && r.CategoryID != categoryID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Answer joins connID to the offer req.ConnectionID. The joiner's public key
// must not already be in the round, neither as host nor as participant.
func (b *Broker) Answer(connID string, req Request) (Record, error) {
	if req.ConnectionID == "" || req.PublicKey == "" {
		return Record{}, badRequest("answer needs connectionId and publicKey")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	target, err := b.store.Get(req.ConnectionID)
	if err != nil {
		return Record{}, err
	}
	all, err := b.store.List()
	if err != nil {
		return Record{}, err
	}
	for _, r := range all {
		if r.RoundID == target.RoundID && r.hasIdentity(req.PublicKey) {
			return Record{}, ErrDuplicateIdentity
		}
	}
	if target.Status != StatusWaiting {
		return Record{}, badRequest("offer %s is %s", target.ConnectionID, target.Status)
	}
	target.Participants = append(target.Participants, Participant{
		ConnectionID: connID,
		Name:         req.Name,
		PublicKey:    req.PublicKey,
	})
	target.Status = statusOf(target)
	if err := b.store.Put(target); err != nil {
		return Record{}, err
	}
	return target, nil
}

// DeleteOffer removes the offer target, which must belong to connID. An empty
// target means connID's own offer.
func (b *Broker) DeleteOffer(connID, target string) error {
	if target == "" {
		target = connID
	}
	if target != connID {
		return badRequest("offer %s belongs to another connection", target)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.store.Get(target); err != nil {
		return err
	}
	return b.store.Delete(target)
}

// Disconnect removes the offer owned by connID, if any.
func (b *Broker) Disconnect(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.store.Delete(connID); err != nil {
		b.logger.Warn("cleanup failed", "conn", connID, "err", err)
	}
}

// Handle decodes one client message, applies it and returns the reply for the
// sender. Answers are also forwarded to the host through fwd.
func (b *Broker) Handle(connID string, raw []byte, fwd Forward) Reply {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return b.fail(req, badRequest("malformed message"))
	}
	b.metrics.IncMessage(req.Type)
	switch req.Type {
	case TypeOffer:
		rec, err := b.Offer(connID, req)
		if err != nil {
			return b.fail(req, err)
		}
		return Reply{Type: TypeOfferCreated, RequestID: req.RequestID, Offer: &rec}
	case TypeListOffers:
		offers, err := b.ListOffers(req.CategoryID)
		if err != nil {
			return b.fail(req, err)
		}
		return Reply{Type: TypeOffers, RequestID: req.RequestID, Offers: offers}
	case TypeAnswer:
		rec, err := b.Answer(connID, req)
		if err != nil {
			return b.fail(req, err)
		}
		if fwd != nil {
			err := fwd(rec.ConnectionID, Reply{
				Type:         TypeAnswer,
				ConnectionID: rec.ConnectionID,
				From:         connID,
				Name:         req.Name,
				PublicKey:    req.PublicKey,
				SDP:          req.SDP,
			})
			if err != nil {
				b.logger.Warn("answer not forwarded", "host", rec.ConnectionID, "err", err)
			}
		}
		return Reply{Type: TypeAnswerSent, RequestID: req.RequestID, Offer: &rec}
	case TypeDeleteOffer:
		target := req.ConnectionID
		if target == "" {
			target = connID
		}
		if err := b.DeleteOffer(connID, target); err != nil {
			return b.fail(req, err)
		}
		return Reply{Type: TypeOfferDeleted, RequestID: req.RequestID, ConnectionID: target}
	default:
		return b.fail(req, &Error{Code: CodeUnknownType, Message: "unknown type " + req.Type})
	}
}

func (b *Broker) fail(req Request, err error) Reply {
	e := codeOf(err)
	var pe *Error
	if !errors.As(err, &pe) {
		b.logger.Error("request failed", "type", req.Type, "err", err)
	}
	b.metrics.IncRejected(e.Code)
	return Reply{Type: TypeError, RequestID: req.RequestID, Code: e.Code, Message: e.Message}
}
