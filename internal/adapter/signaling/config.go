package signaling

import (
	"net"
	"net/url"
	"strconv"
	"time"

	"callsignal/internal/infra/config"
)

// Default transport settings.
const (
	DefaultScheme             = "wss"
	DefaultPath               = "/"
	DefaultRequestTimeout     = 50 * time.Second
	DefaultConnectTimeout     = 100 * time.Second
	DefaultMaxConnectAttempts = 30
	DefaultKeepAliveInterval  = 100 * time.Second
	DefaultBreakerCooldown    = 60 * time.Second
	DefaultReadLimit          = 1 << 20
)

// Config holds the transport parameters of a Socket.
type Config struct {
	Scheme string // "ws" or "wss"
	Path   string

	// RequestTimeout bounds each frame write and keep-alive ping.
	RequestTimeout time.Duration
	// ConnectTimeout bounds the dial and opening handshake.
	ConnectTimeout time.Duration
	// MaxConnectAttempts is the number of consecutive failed Connect calls
	// after which Connect fails fast for BreakerCooldown. Connect itself
	// never retries.
	MaxConnectAttempts uint32
	// KeepAliveInterval is the period between pings on an idle connection.
	KeepAliveInterval time.Duration
	BreakerCooldown   time.Duration
	// ReadLimit is the largest inbound frame accepted, in bytes.
	ReadLimit int64
}

// DefaultConfig returns the stock transport settings.
func DefaultConfig() Config {
	return Config{
		Scheme:             DefaultScheme,
		Path:               DefaultPath,
		RequestTimeout:     DefaultRequestTimeout,
		ConnectTimeout:     DefaultConnectTimeout,
		MaxConnectAttempts: DefaultMaxConnectAttempts,
		KeepAliveInterval:  DefaultKeepAliveInterval,
		BreakerCooldown:    DefaultBreakerCooldown,
		ReadLimit:          DefaultReadLimit,
	}
}

// FromConfig maps the loaded signaling section onto transport settings.
// Zero fields fall back to the defaults when the Socket is built.
func FromConfig(c config.SignalingConfig) Config {
	return Config{
		Scheme:             c.Scheme,
		Path:               c.Path,
		RequestTimeout:     c.RequestTimeout,
		ConnectTimeout:     c.ConnectTimeout,
		MaxConnectAttempts: c.MaxConnectAttempts,
		KeepAliveInterval:  c.KeepAliveInterval,
		BreakerCooldown:    c.BreakerCooldown,
		ReadLimit:          c.ReadLimit,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Scheme == "" {
		c.Scheme = d.Scheme
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.MaxConnectAttempts == 0 {
		c.MaxConnectAttempts = d.MaxConnectAttempts
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = d.KeepAliveInterval
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = d.BreakerCooldown
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	return c
}

// URL builds the endpoint address for host and port.
func (c Config) URL(host string, port int) string {
	u := url.URL{
		Scheme: c.Scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   c.Path,
	}
	return u.String()
}
