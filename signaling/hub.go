package signaling

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/luca-patrignani/mental-ledger/metrics"
	"github.com/luca-patrignani/mental-ledger/network"
)

// ErrNoConnection is returned when forwarding to a socket that is gone.
var ErrNoConnection = errors.New("signaling: no such connection")

// Hub maps connection ids to websockets and feeds their messages to a Broker.
type Hub struct {
	broker  *Broker
	logger  *slog.Logger
	metrics *metrics.Signaling

	mu    sync.RWMutex
	conns map[string]*network.WSChannel
}

func NewHub(broker *Broker, logger *slog.Logger, m *metrics.Signaling) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		broker:  broker,
		logger:  logger.With("component", "hub"),
		metrics: m,
		conns:   make(map[string]*network.WSChannel),
	}
}

// ServeHTTP upgrades the request and serves the socket until it closes. The
// connection's offer is deleted on close.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	ready := make(chan struct{})
	var ws *network.WSChannel
	ws, err := network.AcceptWS(w, r,
		network.WithWSLogger(h.logger),
		network.WithWSListener(func(msg string) {
			<-ready
			h.reply(id, ws, h.broker.Handle(id, []byte(msg), h.Send))
		}),
	)
	if err != nil {
		h.logger.Debug("upgrade failed", "err", err)
		return
	}
	h.mu.Lock()
	h.conns[id] = ws
	h.mu.Unlock()
	h.metrics.ConnectionOpened()
	close(ready)
	h.logger.Debug("connection opened", "conn", id)

	h.reply(id, ws, Reply{Type: TypeWelcome, ConnectionID: id})
	<-ws.Done()

	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
	h.metrics.ConnectionClosed()
	h.broker.Disconnect(id)
	ws.Close()
	h.logger.Debug("connection closed", "conn", id)
}

// Send delivers r to the socket of connectionID.
func (h *Hub) Send(connectionID string, r Reply) error {
	h.mu.RLock()
	ws, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return ErrNoConnection
	}
	return send(ws, r)
}

// Len is the number of open sockets.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) reply(id string, ws *network.WSChannel, r Reply) {
	if err := send(ws, r); err != nil {
		h.logger.Warn("reply failed", "conn", id, "type", r.Type, "err", err)
	}
}

func send(ws *network.WSChannel, r Reply) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return ws.Send(string(b))
}
