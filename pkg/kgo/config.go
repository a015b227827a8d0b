package kgo

import (
	"context"
	"net"
	"time"

	"github.com/pulsewire/kgo/pkg/kwire"
)

// DialFn dials one node. The default uses net.Dialer; tests substitute an
// in-memory pipe dialer.
type DialFn func(ctx context.Context, node Node) (net.Conn, error)

// Config is built once via functional options (the teacher's cfg-struct
// idiom) and is immutable after NewClient/NewNetworkClient builds it. The
// options are applied as given; no option value is validated.
type Config struct {
	clientID string

	dial   DialFn
	logger Logger
	hooks  hooks
	codec  kwire.Codec
	rng    *randSource

	maxInFlightPerConnection int
	requestTimeout           time.Duration
	reconnectBackoff         time.Duration

	metadataMaxAge     time.Duration
	metadataMinBackoff time.Duration

	readBufferBytes  int
	writeBufferBytes int
}

// Opt configures a Config; see the With* functions below.
type Opt func(*Config)

func defaultConfig() *Config {
	return &Config{
		clientID:                 "kgo",
		dial:                     defaultDial,
		logger:                   nopLogger{},
		codec:                    kwire.CodecSnappy,
		maxInFlightPerConnection: 16,
		requestTimeout:           30 * time.Second,
		reconnectBackoff:         500 * time.Millisecond,
		metadataMaxAge:           5 * time.Minute,
		metadataMinBackoff:       100 * time.Millisecond,
		readBufferBytes:          32 * 1024,
		writeBufferBytes:         32 * 1024,
	}
}

func defaultDial(ctx context.Context, node Node) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", node.String())
}

// WithClientID sets the client id sent in every request header.
func WithClientID(id string) Opt { return func(c *Config) { c.clientID = id } }

// WithDialFn overrides how connections are dialed.
func WithDialFn(fn DialFn) Opt { return func(c *Config) { c.dial = fn } }

// WithLogger installs a structured logger on the Config. NetworkClient and
// Client do not emit log lines through it themselves.
func WithLogger(l Logger) Opt { return func(c *Config) { c.logger = l } }

// WithHooks registers observability hooks.
func WithHooks(hs ...Hook) Opt { return func(c *Config) { c.hooks = append(c.hooks, hs...) } }

// WithCodec selects the payload compression codec.
func WithCodec(codec kwire.Codec) Opt { return func(c *Config) { c.codec = codec } }

// WithMaxInFlightPerConnection bounds the per-node in-flight pipeline
// (spec §3 "InFlightRequest" invariant).
func WithMaxInFlightPerConnection(n int) Opt {
	return func(c *Config) { c.maxInFlightPerConnection = n }
}

// WithRequestTimeout sets how long an in-flight request may go unanswered
// before it is treated as a disconnect (spec §4.C step 3e).
func WithRequestTimeout(d time.Duration) Opt { return func(c *Config) { c.requestTimeout = d } }

// WithReconnectBackoff sets the blacked-out window after a disconnect.
func WithReconnectBackoff(d time.Duration) Opt { return func(c *Config) { c.reconnectBackoff = d } }

// WithMetadataMaxAge sets how long a metadata snapshot is considered fresh.
func WithMetadataMaxAge(d time.Duration) Opt { return func(c *Config) { c.metadataMaxAge = d } }

// WithSeededRandom installs a deterministic random source, used for
// leastLoadedNode's random starting offset (spec §9: "must be injectable
// for deterministic testing").
func WithSeededRandom(seed int64) Opt {
	return func(c *Config) { c.rng = newRandSource(seed) }
}
