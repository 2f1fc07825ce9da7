// Package discovery is the client side of the signaling broker: hosts
// publish offers, guests list and answer them, and hosts receive answers on
// Events.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/luca-patrignani/mental-ledger/network"
	"github.com/luca-patrignani/mental-ledger/signaling"
)

// ErrClosed is returned by requests made after Close.
var ErrClosed = errors.New("discovery: client closed")

// Client is a connection to the signaling broker.
type Client struct {
	// Events receives answers forwarded by the broker to this host.
	Events chan signaling.Reply

	id       string
	ws       *network.WSChannel
	settings settings
	logger   *slog.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[string]chan signaling.Reply
	welcome chan string
}

// New dials the broker at url and waits for the connection id.
func New(ctx context.Context, url string, opts ...option) (*Client, error) {
	s := defaults()
	for _, opt := range opts {
		s = opt(s)
	}
	c := &Client{
		Events:   make(chan signaling.Reply, s.buffer),
		settings: s,
		logger:   s.logger.With("component", "discovery"),
		pending:  make(map[string]chan signaling.Reply),
		welcome:  make(chan string, 1),
	}
	conn, _, err := s.dialer.DialContext(ctx, url, s.header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.ws = network.NewWSChannel(conn, network.WithWSLogger(c.logger), network.WithWSListener(c.handle))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	select {
	case c.id = <-c.welcome:
	case <-ctx.Done():
		c.ws.Close()
		return nil, fmt.Errorf("waiting for welcome: %w", ctx.Err())
	case <-c.ws.Done():
		return nil, ErrClosed
	}
	c.logger = c.logger.With("conn", c.id)
	return c, nil
}

// ID is the connection id assigned by the broker.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) handle(msg string) {
	var r signaling.Reply
	if err := json.Unmarshal([]byte(msg), &r); err != nil {
		c.logger.Debug("message discarded", "err", err)
		return
	}
	switch {
	case r.Type == signaling.TypeWelcome:
		select {
		case c.welcome <- r.ConnectionID:
		default:
		}
	case r.RequestID != "":
		c.mu.Lock()
		ch, ok := c.pending[r.RequestID]
		delete(c.pending, r.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- r
		}
	case r.Type == signaling.TypeAnswer:
		select {
		case c.Events <- r:
		default:
			c.logger.Warn("answer dropped: events buffer full", "from", r.From)
		}
	default:
		c.logger.Debug("unexpected reply", "type", r.Type)
	}
}

func (c *Client) call(ctx context.Context, req signaling.Request) (signaling.Reply, error) {
	ch := make(chan signaling.Reply, 1)
	c.mu.Lock()
	c.seq++
	req.RequestID = strconv.FormatUint(c.seq, 10)
	c.pending[req.RequestID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.RequestID)
		c.mu.Unlock()
	}()

	b, err := json.Marshal(req)
	if err != nil {
		return signaling.Reply{}, err
	}
	if err := c.ws.Send(string(b)); err != nil {
		if errors.Is(err, network.ErrClosed) {
			return signaling.Reply{}, ErrClosed
		}
		return signaling.Reply{}, err
	}

	timer := time.NewTimer(c.settings.timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.Type == signaling.TypeError {
			return r, &signaling.Error{Code: r.Code, Message: r.Message}
		}
		return r, nil
	case <-timer.C:
		return signaling.Reply{}, fmt.Errorf("%s: no reply after %s", req.Type, c.settings.timeout)
	case <-ctx.Done():
		return signaling.Reply{}, ctx.Err()
	case <-c.ws.Done():
		return signaling.Reply{}, ErrClosed
	}
}

// Offer publishes this connection's offer.
func (c *Client) Offer(ctx context.Context, req signaling.Request) (signaling.Record, error) {
	req.Type = signaling.TypeOffer
	r, err := c.call(ctx, req)
	if err != nil {
		return signaling.Record{}, err
	}
	return recordOf(r)
}

// ListOffers returns the waiting offers of categoryID.
func (c *Client) ListOffers(ctx context.Context, categoryID string) ([]signaling.Record, error) {
	r, err := c.call(ctx, signaling.Request{Type: signaling.TypeListOffers, CategoryID: categoryID})
	if err != nil {
		return nil, err
	}
	return r.Offers, nil
}

// Answer joins the offer of host, forwarding sdp to it.
func (c *Client) Answer(ctx context.Context, host, name, publicKey, sdp string) (signaling.Record, error) {
	r, err := c.call(ctx, signaling.Request{
		Type:         signaling.TypeAnswer,
		ConnectionID: host,
		Name:         name,
		PublicKey:    publicKey,
		SDP:          sdp,
	})
	if err != nil {
		return signaling.Record{}, err
	}
	return recordOf(r)
}

func recordOf(r signaling.Reply) (signaling.Record, error) {
	if r.Offer == nil {
		return signaling.Record{}, fmt.Errorf("%s reply without offer", r.Type)
	}
	return *r.Offer, nil
}

// DeleteOffer removes this connection's offer.
func (c *Client) DeleteOffer(ctx context.Context) error {
	_, err := c.call(ctx, signaling.Request{Type: signaling.TypeDeleteOffer})
	return err
}

func (c *Client) Close() error {
	return c.ws.Close()
}
