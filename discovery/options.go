package discovery

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type settings struct {
	timeout time.Duration
	dialer  *websocket.Dialer
	header  http.Header
	logger  *slog.Logger
	buffer  int
}

type option func(settings) settings

func defaults() settings {
	return settings{
		timeout: 10 * time.Second,
		dialer:  websocket.DefaultDialer,
		logger:  slog.Default(),
		buffer:  16,
	}
}

// WithTimeout bounds every request waiting for its reply.
func WithTimeout(d time.Duration) option {
	return func(s settings) settings {
		s.timeout = d
		return s
	}
}

func WithDialer(d *websocket.Dialer) option {
	return func(s settings) settings {
		s.dialer = d
		return s
	}
}

func WithHeader(h http.Header) option {
	return func(s settings) settings {
		s.header = h
		return s
	}
}

func WithLogger(l *slog.Logger) option {
	return func(s settings) settings {
		s.logger = l
		return s
	}
}

// WithEventBuffer sizes the Events channel. Answers arriving while it is full
// are dropped.
func WithEventBuffer(n int) option {
	return func(s settings) settings {
		s.buffer = n
		return s
	}
}
