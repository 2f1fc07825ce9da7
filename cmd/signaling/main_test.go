package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luca-patrignani/mental-ledger/config"
	"github.com/luca-patrignani/mental-ledger/discovery"
	"github.com/luca-patrignani/mental-ledger/signaling"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func start(t *testing.T, cfg *config.Config) string {
	t.Helper()
	srv, err := newServer(cfg, quiet)
	require.NoError(t, err)
	hs := httptest.NewServer(srv.handler)
	t.Cleanup(func() {
		hs.Close()
		srv.Close()
	})
	return hs.URL
}

// TestServerDrivers runs an offer and a listing against both stores.
func TestServerDrivers(t *testing.T) {
	for _, driver := range []string{"memory", "leveldb"} {
		t.Run(driver, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.Driver = driver
			cfg.Store.Path = filepath.Join(t.TempDir(), "offers")
			url := start(t, cfg)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			wsURL := "ws" + strings.TrimPrefix(url, "http") + "/ws"
			host, err := discovery.New(ctx, wsURL, discovery.WithLogger(quiet))
			require.NoError(t, err)
			defer host.Close()
			guest, err := discovery.New(ctx, wsURL, discovery.WithLogger(quiet))
			require.NoError(t, err)
			defer guest.Close()

			_, err = host.Offer(ctx, signaling.Request{CategoryID: "ludo", RoundID: "r1", Name: "alice", PublicKey: "pk-a"})
			require.NoError(t, err)
			offers, err := guest.ListOffers(ctx, "ludo")
			require.NoError(t, err)
			require.Len(t, offers, 1)
			require.Equal(t, host.ID(), offers[0].ConnectionID)

			resp, err := http.Get(url + "/metrics")
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Contains(t, string(body), "go_goroutines")
			require.Contains(t, string(body), `mledger_signaling_messages_total{type="offer"} 1`)
		})
	}
}

// TestICEEndpoint serves the configured ICE servers to clients.
func TestICEEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.ICE.URLs = []string{"stun:a", "turn:b"}
	url := start(t, cfg)

	resp, err := http.Get(url + "/ice")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got struct{ URLs []string }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, cfg.ICE.URLs, got.URLs)

	resp, err = http.Get(url + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestUnknownDriver checks the store driver is validated when wiring.
func TestUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "redis"
	_, err := newServer(cfg, quiet)
	require.ErrorContains(t, err, "unknown store driver")
}

// TestServeStopsOnCancel checks a cancelled context shuts the listener down.
func TestServeStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
}
