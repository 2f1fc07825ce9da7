package signaling

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/luca-patrignani/mental-ledger/metrics"
)

type client struct {
	t  *testing.T
	ws *websocket.Conn
	id string
}

func dial(t *testing.T, url string) *client {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	c := &client{t: t, ws: ws}
	welcome := c.read()
	require.Equal(t, TypeWelcome, welcome.Type)
	c.id = welcome.ConnectionID
	return c
}

func (c *client) send(r Request) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(r))
}

func (c *client) read() Reply {
	c.t.Helper()
	c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var r Reply
	require.NoError(c.t, c.ws.ReadJSON(&r))
	return r
}

func newServer(t *testing.T) (*httptest.Server, *Broker, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewSignaling(reg)
	require.NoError(t, err)
	broker := NewBroker(NewMemoryStore(0), WithMetrics(m))
	srv := httptest.NewServer(NewRouter(NewHub(broker, nil, m), reg))
	t.Cleanup(srv.Close)
	return srv, broker, reg
}

// TestHubForwardsAnswers runs a host and a guest through the socket.
func TestHubForwardsAnswers(t *testing.T) {
	srv, _, _ := newServer(t)
	host := dial(t, srv.URL)
	guest := dial(t, srv.URL)
	require.NotEqual(t, host.id, guest.id)

	host.send(offer("r1", "pk-host"))
	created := host.read()
	require.Equal(t, TypeOfferCreated, created.Type)
	require.Equal(t, host.id, created.Offer.ConnectionID)

	guest.send(Request{Type: TypeListOffers, CategoryID: "tictactoe", RequestID: "list"})
	list := guest.read()
	require.Equal(t, "list", list.RequestID)
	require.Len(t, list.Offers, 1)
	require.Equal(t, "offer-sdp", list.Offers[0].SDP)

	guest.send(answer(host.id, "pk-guest"))
	require.Equal(t, TypeAnswerSent, guest.read().Type)

	fwd := host.read()
	require.Equal(t, TypeAnswer, fwd.Type)
	require.Equal(t, guest.id, fwd.From)
	require.Equal(t, "answer-sdp", fwd.SDP)
}

// TestHubDeletesOffersOnClose checks a closed host socket removes its offer.
func TestHubDeletesOffersOnClose(t *testing.T) {
	srv, broker, _ := newServer(t)
	host := dial(t, srv.URL)
	host.send(offer("r1", "pk-host"))
	host.read()
	host.ws.Close()

	require.Eventually(t, func() bool {
		offers, err := broker.ListOffers("")
		return err == nil && len(offers) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

// TestRouterProbes checks /healthz and /metrics.
func TestRouterProbes(t *testing.T) {
	srv, _, _ := newServer(t)
	c := dial(t, srv.URL)
	c.send(Request{Type: TypeListOffers})
	c.read()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(body), `mledger_signaling_messages_total{type="listOffers"} 1`)
	require.Contains(t, string(body), "mledger_signaling_connections 1")
}

// TestReplyEncoding pins the wire names of the reply fields.
func TestReplyEncoding(t *testing.T) {
	b, err := json.Marshal(Reply{Type: TypeError, Code: CodeNotFound, Message: "offer not found"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"error","code":"NOT_FOUND","message":"offer not found"}`, string(b))
}
