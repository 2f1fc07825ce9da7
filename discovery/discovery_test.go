package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/luca-patrignani/mental-ledger/signaling"
)

func server(t *testing.T) string {
	t.Helper()
	hub := signaling.NewHub(signaling.NewBroker(signaling.NewMemoryStore(0)), nil, nil)
	srv := httptest.NewServer(signaling.NewRouter(hub, nil))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func connect(t *testing.T, url string, opts ...option) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := New(ctx, url, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// TestOfferAnswerFlow runs a host and two guests through the broker.
func TestOfferAnswerFlow(t *testing.T) {
	url := server(t)
	ctx := context.Background()
	host := connect(t, url)
	guest := connect(t, url)
	twin := connect(t, url)
	require.NotEmpty(t, host.ID())

	rec, err := host.Offer(ctx, signaling.Request{
		CategoryID: "tictactoe",
		RoundID:    "round-1",
		Name:       "alice",
		PublicKey:  "pk-alice",
		SDP:        "offer",
	})
	require.NoError(t, err)
	require.Equal(t, host.ID(), rec.ConnectionID)

	offers, err := guest.ListOffers(ctx, "tictactoe")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, "offer", offers[0].SDP)

	rec, err = guest.Answer(ctx, host.ID(), "bob", "pk-bob", "answer")
	require.NoError(t, err)
	require.Len(t, rec.Participants, 1)

	select {
	case ev := <-host.Events:
		require.Equal(t, guest.ID(), ev.From)
		require.Equal(t, "answer", ev.SDP)
		require.Equal(t, "pk-bob", ev.PublicKey)
	case <-time.After(5 * time.Second):
		t.Fatal("host did not receive the answer")
	}

	_, err = twin.Answer(ctx, host.ID(), "bob again", "pk-bob", "answer")
	require.ErrorIs(t, err, signaling.ErrDuplicateIdentity)

	require.NoError(t, host.DeleteOffer(ctx))
	offers, err = guest.ListOffers(ctx, "tictactoe")
	require.NoError(t, err)
	require.Empty(t, offers)

	_, err = guest.Answer(ctx, host.ID(), "carol", "pk-carol", "answer")
	require.ErrorIs(t, err, signaling.ErrNotFound)
}

// TestWelcomeTimeout checks New gives up on a server that never greets.
func TestWelcomeTimeout(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	_, err := New(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), WithTimeout(50*time.Millisecond))
	require.Error(t, err)
}

// TestClosedClient checks requests fail once the socket is closed.
func TestClosedClient(t *testing.T) {
	c := connect(t, server(t), WithDialer(&websocket.Dialer{HandshakeTimeout: time.Second}))
	require.NoError(t, c.Close())
	require.Eventually(t, func() bool {
		_, err := c.ListOffers(context.Background(), "")
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)
}
