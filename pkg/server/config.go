package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds server settings.
type Config struct {
	// Addr is the listen address.
	// Default: "localhost:7070".
	Addr string

	// ReadHeaderTimeout bounds how long a client may take to send headers.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame to a
	// websocket client.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// PingInterval is the time between websocket pings. A client that does
	// not answer within two intervals is dropped.
	// Default: 30 seconds.
	PingInterval time.Duration

	// SendBuffer is the number of frames queued per client. A client that
	// falls further behind is disconnected.
	// Default: 64.
	SendBuffer int

	// ReadBufferSize and WriteBufferSize size the websocket buffers.
	// Default: 1024 each.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates websocket origins.
	// Default: same host only.
	CheckOrigin func(r *http.Request) bool

	// Gatherer serves /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:              "localhost:7070",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
		SendBuffer:        64,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
	}
}

// withDefaults returns a copy of c with unset fields filled in.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Addr == "" {
		out.Addr = d.Addr
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.PingInterval == 0 {
		out.PingInterval = d.PingInterval
	}
	if out.SendBuffer <= 0 {
		out.SendBuffer = d.SendBuffer
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	return &out
}
