// Command signaling runs the rendezvous server peers use to find each other
// and exchange WebRTC descriptions before a game starts.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luca-patrignani/mental-ledger/config"
	"github.com/luca-patrignani/mental-ledger/metrics"
	"github.com/luca-patrignani/mental-ledger/network"
	"github.com/luca-patrignani/mental-ledger/signaling"
	"github.com/luca-patrignani/mental-ledger/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "signaling",
		Short:         "Offer, answer and lobby server for ledger games",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var cfgPath string
	var envFiles []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the signaling websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(envFiles...); err != nil {
				return err
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "YAML configuration file")
	cmd.Flags().StringSliceVar(&envFiles, "env", nil, "dotenv files to load before the configuration, default .env")
	return cmd
}

func newLogger(level string) *slog.Logger {
	switch strings.ToLower(level) {
	case "debug":
		pterm.DefaultLogger.Level = pterm.LogLevelDebug
	case "warn":
		pterm.DefaultLogger.Level = pterm.LogLevelWarn
	case "error":
		pterm.DefaultLogger.Level = pterm.LogLevelError
	default:
		pterm.DefaultLogger.Level = pterm.LogLevelInfo
	}
	return slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))
}

// server bundles the handler with whatever the chosen store must release.
type server struct {
	handler http.Handler
	hub     *signaling.Hub
	closer  io.Closer
}

func (s *server) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func openStore(cfg *config.Config) (signaling.Store, io.Closer, error) {
	switch cfg.Store.Driver {
	case "memory":
		return signaling.NewMemoryStore(cfg.Store.OfferTTL), nil, nil
	case "leveldb":
		db, err := storage.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.Store.Path, err)
		}
		return signaling.NewLevelStore(db, cfg.Store.OfferTTL), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newServer(cfg *config.Config, logger *slog.Logger) (*server, error) {
	store, closer, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m, err := metrics.NewSignaling(reg)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	broker := signaling.NewBroker(store, signaling.WithLogger(logger), signaling.WithMetrics(m))
	hub := signaling.NewHub(broker, logger, m)

	r := chi.NewRouter()
	r.Get("/ice", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]string{"urls": cfg.ICE.URLs})
	})
	r.Mount("/", signaling.NewRouter(hub, reg))
	return &server{
		handler: r,
		hub:     hub,
		closer:  closer,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Log.Level)
	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.Server.TLS.SelfSigned {
		hosts := cfg.Server.TLS.Hosts
		if len(hosts) == 0 {
			hosts = []string{"localhost", "127.0.0.1"}
		}
		cert, _, err := network.GenerateSelfSignedCert(hosts...)
		if err != nil {
			return fmt.Errorf("self-signed certificate: %w", err)
		}
		httpSrv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("signaling listening", "addr", cfg.Server.Addr, "tls", cfg.Server.TLS.SelfSigned, "store", cfg.Store.Driver)
		var err error
		if httpSrv.TLSConfig != nil {
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", "connections", srv.hub.Len())
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}
